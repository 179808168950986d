package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"time"

	"github.com/google/uuid"
)

// Service はアカウント登録とログインの手続きをまとめます。
// バリデーション違反は途中で打ち切らず全件収集して返します。
type Service struct {
	store  UserStore
	hasher PasswordHasher
	logger *log.Logger
}

// NewService は認証サービスを作成します。
func NewService(store UserStore, hasher PasswordHasher, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if hasher == nil {
		return nil, errors.New("hasher is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, hasher: hasher, logger: logger}, nil
}

// RegisterInput は登録フォームの入力値です。
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register はアカウントを作成します。
// 入力エラーがある場合は ValidationErrors を返し、ストレージには触れません。
// メールアドレスの重複とハッシュ化失敗はどちらも ErrEmailTaken / 汎用エラーとして
// 返し、利用者向けには同じ「作成できませんでした」文言に変換されます。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	var violations ValidationErrors
	if in.Name == "" {
		violations = append(violations, ValidationError{Field: "name", Message: "名前を入力してください。"})
	}
	if in.Email == "" {
		violations = append(violations, ValidationError{Field: "email", Message: "メールアドレスを入力してください。"})
	} else if !isValidEmail(in.Email) {
		violations = append(violations, ValidationError{Field: "email", Message: "メールアドレスの形式が正しくありません。"})
	}
	if in.Password == "" {
		violations = append(violations, ValidationError{Field: "password", Message: "パスワードを入力してください。"})
	}
	if in.ConfirmPassword == "" {
		violations = append(violations, ValidationError{Field: "confirmPassword", Message: "確認用パスワードを入力してください。"})
	} else if in.ConfirmPassword != in.Password {
		violations = append(violations, ValidationError{Field: "confirmPassword", Message: "パスワードと確認用パスワードが一致しません。"})
	}
	if len(violations) > 0 {
		return nil, violations
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		// ハッシュ化の失敗は内部情報を出さず汎用の作成失敗として扱う
		s.logger.Printf("failed to hash password: %v", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// 重複かどうかは応答から判別できないようにする
			s.logger.Printf("registration rejected: duplicate email")
			return nil, ErrEmailTaken
		}
		s.logger.Printf("failed to insert user: %v", err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	identity := user.Identity()
	return &identity, nil
}

// Login は資格情報を検証し、成功時にアカウントのスナップショットを返します。
// アカウント不在とパスワード不一致はどちらも ErrInvalidCredentials になります。
func (s *Service) Login(ctx context.Context, email, password string) (*Identity, error) {
	var violations ValidationErrors
	if email == "" {
		violations = append(violations, ValidationError{Field: "email", Message: "メールアドレスを入力してください。"})
	} else if !isValidEmail(email) {
		violations = append(violations, ValidationError{Field: "email", Message: "メールアドレスの形式が正しくありません。"})
	}
	if password == "" {
		violations = append(violations, ValidationError{Field: "password", Message: "パスワードを入力してください。"})
	}
	if len(violations) > 0 {
		return nil, violations
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Printf("failed to look up user: %v", err)
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	identity := user.Identity()
	return &identity, nil
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
