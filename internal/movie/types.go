// Package movie は映画カタログのCRUD機能を提供します。
package movie

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EarliestYear は公開年の下限です（世界最初の映画の公開年）。
const EarliestYear = 1895

// Movie はカタログ上の映画レコードです。
// OwnerID は作成時に確定し、以後の更新では変更されません。
type Movie struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Year        int       `json:"year"`
	Genre       string    `json:"genre"`
	Rating      *float64  `json:"rating,omitempty"`
	OwnerID     uuid.UUID `json:"ownerId"`
	PosterPath  string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input は作成・更新フォームの入力値です。所有者は含みません。
// 所有者はサービス側で決定し、入力から変更することはできません。
type Input struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Year        int      `json:"year"`
	Genre       string   `json:"genre"`
	Rating      *float64 `json:"rating"`
}

// ValidationError は入力項目単位のエラーです。
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
	// ErrNotFound は該当する映画が存在しないことを表します。
	ErrNotFound = errors.New("movie not found")

	// ErrNameTaken はタイトルの一意制約違反を表します。
	ErrNameTaken = errors.New("movie name already taken")
)
