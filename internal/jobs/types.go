package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound は該当ジョブが存在しない（または期限切れ）ことを表します。
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotOwned は呼び出し元がジョブの所有者でないことを表します。
	ErrJobNotOwned = errors.New("job not owned by caller")
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はジョブの現在状態を表します。
// OwnerID は状態照会とダウンロードの認可判定に使います。
type Record struct {
	JobID       string       `json:"jobId"`
	OwnerID     uuid.UUID    `json:"ownerId"`
	Format      string       `json:"format"`
	Status      Status       `json:"status"`
	Progress    ProgressInfo `json:"progress"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	Meta        any          `json:"meta,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}
