package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Jaysandjay/ModernWebFinal/internal/config"
	"github.com/Jaysandjay/ModernWebFinal/internal/export"
)

const (
	taskTypeExport = "export:catalog"
)

// Manager はエクスポートジョブの投入と状態管理を担います。
type Manager struct {
	cfg           *config.Config
	client        *asynq.Client
	server        *asynq.Server
	mux           *asynq.ServeMux
	store         *Store
	exportService *export.Service
	logger        *log.Logger
}

// TaskPayload はエクスポートジョブのペイロードです。
type TaskPayload struct {
	JobID  string        `json:"jobId"`
	Format export.Format `json:"format"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, exportService *export.Service, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if exportService == nil {
		return nil, errors.New("exportService is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"export": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:           cfg,
		client:        client,
		server:        server,
		mux:           mux,
		store:         store,
		exportService: exportService,
		logger:        logger,
	}
	mux.HandleFunc(taskTypeExport, manager.handleExportTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Enqueue は準備済みジョブをキューに投入します。
// 所有者IDを記録に残し、以降の照会・ダウンロードの認可に使います。
func (m *Manager) Enqueue(ctx context.Context, manifest *export.JobManifest) (string, error) {
	if manifest == nil {
		return "", fmt.Errorf("manifest is nil")
	}
	if manifest.JobID == "" {
		return "", fmt.Errorf("manifest.JobID is required")
	}

	record := &Record{
		JobID:   manifest.JobID,
		OwnerID: manifest.OwnerID,
		Format:  string(manifest.Format),
		Status:  StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(&TaskPayload{
		JobID:  manifest.JobID,
		Format: manifest.Format,
	})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeExport, body, asynq.Queue("export"))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

// GetOwnedRecord は所有者検証付きでジョブ情報を取得します。
func (m *Manager) GetOwnedRecord(ctx context.Context, jobID string, ownerID uuid.UUID) (*Record, error) {
	return m.store.GetOwned(ctx, jobID, ownerID)
}

func (m *Manager) handleExportTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	// 所有者情報を保持したまま実行中へ遷移させます。
	if err := m.store.MarkRunning(ctx, payload.JobID, "load"); err != nil {
		return err
	}

	result, err := m.exportService.RunJob(ctx, payload.JobID, func(stage string, percent int) {
		_ = m.store.UpdateProgress(ctx, payload.JobID, ProgressInfo{
			Stage:   stage,
			Percent: percent,
		})
	})
	if err != nil {
		return m.failJobWithError(ctx, payload.JobID, err)
	}
	return m.finishJob(ctx, payload.JobID, result)
}

func (m *Manager) finishJob(ctx context.Context, jobID string, result *export.Result) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	downloadURL := m.buildDownloadURL(result)
	meta := map[string]any{
		"recordCount": result.RecordCount,
		"filename":    result.OutputFilename,
		"size":        result.OutputSize,
	}
	if err := m.store.MarkDone(ctx, jobID, downloadURL, meta); err != nil {
		return err
	}
	return nil
}

func (m *Manager) failJob(ctx context.Context, jobID, code, message string) error {
	if err := m.store.MarkFailed(ctx, jobID, &ErrorInfo{
		Code:    code,
		Message: message,
	}); err != nil {
		return err
	}
	return nil
}

func (m *Manager) failJobWithError(ctx context.Context, jobID string, err error) error {
	var apiErr *export.Error
	if errors.As(err, &apiErr) {
		return m.failJob(ctx, jobID, apiErr.Code, apiErr.Message)
	}
	return m.failJob(ctx, jobID, "INTERNAL_ERROR", err.Error())
}

func (m *Manager) buildDownloadURL(result *export.Result) string {
	base := m.cfg.ExportResultBaseURL
	if base == "" {
		return fmt.Sprintf("/api/exports/%s/download", result.JobID)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), result.JobID, url.PathEscape(result.OutputFilename))
}
