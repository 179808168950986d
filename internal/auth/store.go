package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStore はアカウントの永続化を担います。
type UserStore interface {
	Insert(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
}

type userModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

// GormUserStore は Postgres(GORM) によるアカウントストアです。
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore は GormUserStore を作成します。
func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

// Migrate はスキーマを適用します。
func (s *GormUserStore) Migrate() error {
	return s.db.AutoMigrate(&userModel{})
}

// Insert はアカウントを保存します。メールアドレスが重複している場合は ErrEmailTaken を返します。
func (s *GormUserStore) Insert(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	rec := userModel{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// FindByEmail はメールアドレスでアカウントを検索します。存在しない場合は ErrUserNotFound を返します。
func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var rec userModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &User{
		ID:           rec.ID,
		Name:         rec.Name,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}
