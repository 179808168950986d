package movie

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store は映画レコードの永続化を担います。
type Store interface {
	Insert(ctx context.Context, m *Movie) error
	FindByID(ctx context.Context, id uuid.UUID) (*Movie, error)
	FindAll(ctx context.Context) ([]Movie, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Movie, error)
	Update(ctx context.Context, m *Movie) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPosterPath(ctx context.Context, id uuid.UUID, path string) error
}

type movieModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description string
	Year        int    `gorm:"not null"`
	Genre       string `gorm:"not null"`
	Rating      *float64
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null"`
	PosterPath  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (movieModel) TableName() string { return "movies" }

// GormStore は Postgres(GORM) による映画ストアです。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore は GormStore を作成します。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate はスキーマを適用します。
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&movieModel{})
}

// Insert は映画を保存します。タイトルが重複している場合は ErrNameTaken を返します。
func (s *GormStore) Insert(ctx context.Context, m *Movie) error {
	if m == nil {
		return errors.New("movie is nil")
	}
	rec := toModel(m)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrNameTaken
		}
		return err
	}
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
	return nil
}

// FindByID は映画をIDで検索します。存在しない場合は ErrNotFound を返します。
func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*Movie, error) {
	var rec movieModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m := toDomain(rec)
	return &m, nil
}

// FindAll は全件を作成順で返します。
func (s *GormStore) FindAll(ctx context.Context) ([]Movie, error) {
	var recs []movieModel
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toDomainList(recs), nil
}

// FindByOwner は指定した所有者の映画を作成順で返します。
func (s *GormStore) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Movie, error) {
	var recs []movieModel
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toDomainList(recs), nil
}

// Update は所有者以外の項目を更新します。owner_id は書き込み対象に含めません。
func (s *GormStore) Update(ctx context.Context, m *Movie) error {
	if m == nil {
		return errors.New("movie is nil")
	}
	res := s.db.WithContext(ctx).
		Model(&movieModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"name":        m.Name,
			"description": m.Description,
			"year":        m.Year,
			"genre":       m.Genre,
			"rating":      m.Rating,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrNameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete は映画を削除します。存在しない場合は ErrNotFound を返します。
func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&movieModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPosterPath はポスター画像の保存先パスを記録します。
func (s *GormStore) SetPosterPath(ctx context.Context, id uuid.UUID, path string) error {
	res := s.db.WithContext(ctx).
		Model(&movieModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"poster_path": path,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toModel(m *Movie) movieModel {
	return movieModel{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Year:        m.Year,
		Genre:       m.Genre,
		Rating:      m.Rating,
		OwnerID:     m.OwnerID,
		PosterPath:  m.PosterPath,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDomain(rec movieModel) Movie {
	return Movie{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Year:        rec.Year,
		Genre:       rec.Genre,
		Rating:      rec.Rating,
		OwnerID:     rec.OwnerID,
		PosterPath:  rec.PosterPath,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toDomainList(recs []movieModel) []Movie {
	movies := make([]Movie, len(recs))
	for i, rec := range recs {
		movies[i] = toDomain(rec)
	}
	return movies
}
