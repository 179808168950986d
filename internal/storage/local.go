// Package storage はストレージ抽象化レイヤーを提供します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage はファイルの保存・読み出し・削除を抽象化します。
// 現在はローカルファイルシステム実装のみで、将来のオブジェクトストレージ移行を想定しています。
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Open(ctx context.Context, path string) (*os.File, error)
	Delete(ctx context.Context, path string) error
}

// Local はローカルファイルシステムへの保存を行います。
type Local struct {
	baseDir string
}

// NewLocal はベースディレクトリを用意してローカルストレージを作成します。
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, errors.New("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base dir: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// Save はベースディレクトリ配下にデータを書き込みます。
func (l *Local) Save(ctx context.Context, path string, data []byte) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}
	return os.WriteFile(full, data, 0o640)
}

// Open はファイルを読み取り用に開きます。
func (l *Local) Open(ctx context.Context, path string) (*os.File, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete はファイルを削除します。存在しない場合はエラーにしません。
func (l *Local) Delete(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve はベースディレクトリからの相対パスを検証して絶対パスに変換します。
// ディレクトリトラバーサルを防ぐため、ベースの外に出るパスは拒否します。
func (l *Local) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	full := filepath.Join(l.baseDir, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, l.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path: %s", path)
	}
	return full, nil
}
