package movie

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Jaysandjay/ModernWebFinal/internal/config"
)

// Service は映画カタログのCRUD操作を提供します。
// 変更系の操作は認可ゲート（RequireOwner）の通過を前提とし、ここでは所有権を再確認しません。
type Service struct {
	store  Store
	scope  string
	logger *log.Logger
}

// NewService は映画サービスを作成します。
// scope は一覧の公開範囲（config.CatalogScopeAll / CatalogScopeOwner）です。
func NewService(store Store, scope string, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if scope == "" {
		scope = config.CatalogScopeAll
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, scope: scope, logger: logger}, nil
}

// Create は映画を登録し、所有者を確定します。
// 入力エラーがある場合は ValidationErrors を返し、ストレージには触れません。
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in Input) (*Movie, error) {
	if violations := validate(in); len(violations) > 0 {
		return nil, violations
	}

	m := &Movie{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Year:        in.Year,
		Genre:       in.Genre,
		Rating:      in.Rating,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, m); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, ErrNameTaken
		}
		s.logger.Printf("failed to insert movie: %v", err)
		return nil, fmt.Errorf("insert movie: %w", err)
	}
	return m, nil
}

// List は閲覧者に見える映画の一覧を返します。
// 既定では全員共有のカタログとして全件、owner スコープ設定時は本人所有分のみです。
func (s *Service) List(ctx context.Context, viewerID uuid.UUID) ([]Movie, error) {
	if s.scope == config.CatalogScopeOwner {
		return s.store.FindByOwner(ctx, viewerID)
	}
	return s.store.FindAll(ctx)
}

// Get は映画をIDで取得します。存在しない場合は ErrNotFound を返します。
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Movie, error) {
	return s.store.FindByID(ctx, id)
}

// Update は映画の項目を更新します。所有者は入力に関わらず登録時のまま保持されます。
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Movie, error) {
	if violations := validate(in); len(violations) > 0 {
		return nil, violations
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := &Movie{
		ID:          current.ID,
		Name:        in.Name,
		Description: in.Description,
		Year:        in.Year,
		Genre:       in.Genre,
		Rating:      in.Rating,
		OwnerID:     current.OwnerID, // 所有者は常に元の値を引き継ぐ
		PosterPath:  current.PosterPath,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.Update(ctx, updated); err != nil {
		if errors.Is(err, ErrNameTaken) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		s.logger.Printf("failed to update movie %s: %v", id, err)
		return nil, fmt.Errorf("update movie: %w", err)
	}
	return updated, nil
}

// Delete は映画を削除します。
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.logger.Printf("failed to delete movie %s: %v", id, err)
		return fmt.Errorf("delete movie: %w", err)
	}
	return nil
}

// SetPosterPath はポスター画像の保存先を記録します。
func (s *Service) SetPosterPath(ctx context.Context, id uuid.UUID, path string) error {
	return s.store.SetPosterPath(ctx, id, path)
}

func validate(in Input) ValidationErrors {
	var violations ValidationErrors
	if in.Name == "" {
		violations = append(violations, ValidationError{Field: "name", Message: "タイトルを入力してください。"})
	}
	if in.Genre == "" {
		violations = append(violations, ValidationError{Field: "genre", Message: "ジャンルを入力してください。"})
	}
	currentYear := time.Now().Year()
	if in.Year < EarliestYear || in.Year > currentYear {
		violations = append(violations, ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("公開年は%d年から%d年までの整数で入力してください。", EarliestYear, currentYear),
		})
	}
	return violations
}
