// Package auth は認証・認可機能を提供します。
package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User はアカウントの永続化レコードです。パスワードはハッシュのみ保持します。
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity はログイン時点のアカウント情報のスナップショットです。
// セッションに保存され、リクエストごとの本人確認と所有権判定に使われます。
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Identity はセッションに保存するスナップショットを返します。
func (u *User) Identity() Identity {
	return Identity{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// ValidationError は入力項目単位のエラーです。フォーム再表示用に全件まとめて返します。
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors は入力エラーの集合を error として扱うための型です。
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	return v[0].Field + ": " + v[0].Message
}

var (
	// ErrEmailTaken はメールアドレスの一意制約違反を表します。
	// 利用者向けメッセージには変換せず、汎用の作成失敗として返すこと。
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound は該当アカウントが存在しないことを表します。
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials はメールアドレス不明とパスワード不一致の両方に使う
	// 共通のエラーです。どちらが原因かは呼び出し側にも利用者にも区別させません。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// 認証まわりの利用者向けメッセージです。
// ログイン失敗は原因を問わず必ず同一文字列を返します（アカウント列挙の防止）。
const (
	MsgInvalidCredentials = "メールアドレスまたはパスワードが正しくありません。"
	MsgCannotCreate       = "アカウントを作成できませんでした。"
)
