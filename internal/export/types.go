// Package export はカタログのエクスポート機能を提供します。
package export

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Format はエクスポート形式を表します。
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// エクスポート形式ごとの成果物ファイル名です。
const (
	csvFilename  = "movies.csv"
	jsonFilename = "movies.json"
)

var formatOutput = map[Format]struct {
	filename    string
	contentType string
}{
	FormatCSV:  {filename: csvFilename, contentType: "text/csv; charset=utf-8"},
	FormatJSON: {filename: jsonFilename, contentType: "application/json"},
}

// Result はエクスポート処理の成果を表します。
type Result struct {
	JobID          string `json:"jobId"`
	Format         Format `json:"format"`
	OutputPath     string `json:"outputPath"`
	OutputFilename string `json:"outputFilename"`
	OutputSize     int64  `json:"outputSize"`
	ContentType    string `json:"contentType"`
	RecordCount    int    `json:"recordCount"`

	jobDir      string
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は作業ディレクトリを削除します。
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = removeDir(r.jobDir)
	})
	return r.cleanupErr
}

// JobManifest はジョブに必要な情報を保持します。
type JobManifest struct {
	JobID       string    `json:"jobId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Format      Format    `json:"format"`
	RecordCount int       `json:"recordCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Error は利用者に提示できるエクスポートエラーです。
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(stage string, percent int)

func reportProgress(cb ProgressReporter, stage string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, percent)
}
