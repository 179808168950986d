package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Jaysandjay/ModernWebFinal/internal/movie"
)

const manifestFilename = "manifest.json"

// Catalog はエクスポート対象の映画一覧を提供します。
// 一覧の公開範囲（共有カタログ/所有者のみ）は実装側の設定に従います。
type Catalog interface {
	List(ctx context.Context, viewerID uuid.UUID) ([]movie.Movie, error)
}

// Service はエクスポートジョブの準備と実行を提供します。
type Service struct {
	catalog Catalog
	baseDir string
	now     func() time.Time
}

// NewService はエクスポートサービスを作成します。
// baseDir 配下にジョブごとの作業ディレクトリを作ります。
func NewService(catalog Catalog, baseDir string) (*Service, error) {
	if catalog == nil {
		return nil, errors.New("catalog is nil")
	}
	if baseDir == "" {
		return nil, errors.New("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export base dir: %w", err)
	}
	return &Service{
		catalog: catalog,
		baseDir: baseDir,
		now:     time.Now,
	}, nil
}

type workspace struct {
	jobID  string
	dir    string
	outDir string
}

func (s *Service) workspaceFor(jobID string) workspace {
	dir := filepath.Join(s.baseDir, jobID)
	return workspace{
		jobID:  jobID,
		dir:    dir,
		outDir: filepath.Join(dir, "out"),
	}
}

func (s *Service) createWorkspace() (workspace, error) {
	ws := s.workspaceFor(uuid.NewString())
	if err := os.MkdirAll(ws.outDir, 0o750); err != nil {
		return workspace{}, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// PrepareJob はエクスポートジョブを準備し、マニフェストを書き出します。
// 対象件数を数えておき、同期/非同期の切り替え判断に使います。
func (s *Service) PrepareJob(ctx context.Context, ownerID uuid.UUID, format Format) (*JobManifest, error) {
	if _, ok := formatOutput[format]; !ok {
		return nil, newError("INVALID_INPUT", fmt.Sprintf("formatには csv または json を指定してください (received: %s)", format), nil)
	}

	movies, err := s.catalog.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}

	manifest := &JobManifest{
		JobID:       ws.jobID,
		OwnerID:     ownerID,
		Format:      format,
		RecordCount: len(movies),
		CreatedAt:   s.now().UTC(),
	}
	if err := writeManifest(ws.dir, manifest); err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}
	return manifest, nil
}

// RunJob はジョブIDに対応するエクスポートを実行します。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}
	output, ok := formatOutput[manifest.Format]
	if !ok {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("unsupported format: %s", manifest.Format)
	}

	reportProgress(reporter, "load", 10)
	movies, err := s.catalog.List(ctx, manifest.OwnerID)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	reportProgress(reporter, "load", 30)

	if err := ctx.Err(); err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}

	outputPath := filepath.Join(ws.outDir, output.filename)
	switch manifest.Format {
	case FormatCSV:
		err = writeCSV(outputPath, movies)
	case FormatJSON:
		err = writeJSON(outputPath, movies)
	}
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}
	reportProgress(reporter, "write", 90)

	info, err := os.Stat(outputPath)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}

	return &Result{
		JobID:          jobID,
		Format:         manifest.Format,
		OutputPath:     outputPath,
		OutputFilename: output.filename,
		OutputSize:     info.Size(),
		ContentType:    output.contentType,
		RecordCount:    len(movies),
		jobDir:         ws.dir,
	}, nil
}

// DiscardJob は準備済みジョブの作業ディレクトリを破棄します。
func (s *Service) DiscardJob(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	return removeDir(s.workspaceFor(jobID).dir)
}

// OpenResultFile はジョブIDに対応する成果物ファイルを開き、Result 情報とファイルハンドルを返します。
func (s *Service) OpenResultFile(jobID string) (*Result, *os.File, error) {
	if jobID == "" {
		return nil, nil, fmt.Errorf("jobID is required")
	}

	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		return nil, nil, err
	}
	output, ok := formatOutput[manifest.Format]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported format for result download: %s", manifest.Format)
	}

	outputPath := filepath.Join(ws.outDir, output.filename)
	file, err := os.Open(outputPath)
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	result := &Result{
		JobID:          jobID,
		Format:         manifest.Format,
		OutputPath:     outputPath,
		OutputFilename: output.filename,
		OutputSize:     info.Size(),
		ContentType:    output.contentType,
		RecordCount:    manifest.RecordCount,
		jobDir:         ws.dir,
	}

	return result, file, nil
}

func writeManifest(jobDir string, manifest *JobManifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest is nil")
	}
	path := filepath.Join(jobDir, manifestFilename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

func loadManifest(jobDir string) (*JobManifest, error) {
	path := filepath.Join(jobDir, manifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest JobManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

func writeCSV(path string, movies []movie.Movie) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open csv output: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"name", "description", "year", "genre", "rating", "ownerId"}); err != nil {
		return err
	}
	for _, m := range movies {
		rating := ""
		if m.Rating != nil {
			rating = strconv.FormatFloat(*m.Rating, 'f', -1, 64)
		}
		row := []string{
			m.Name,
			m.Description,
			strconv.Itoa(m.Year),
			m.Genre,
			rating,
			m.OwnerID.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, movies []movie.Movie) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open json output: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(movies)
}

func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
