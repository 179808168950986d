package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}

	data := []byte("poster bytes")
	if err := local.Save(context.Background(), "posters/abc.png", data); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	file, err := local.Open(context.Background(), "posters/abc.png")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer file.Close()

	read, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Fatalf("unexpected content: %q", read)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}

	if err := local.Save(context.Background(), "posters/abc.png", []byte("x")); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := local.Delete(context.Background(), "posters/abc.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	// 既に消えていてもエラーにしない
	if err := local.Delete(context.Background(), "posters/abc.png"); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}
	if _, err := local.Open(context.Background(), "posters/abc.png"); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	baseDir := t.TempDir()
	local, err := NewLocal(baseDir)
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}

	// Clean でベース配下に正規化されるため外には出ない
	if err := local.Save(context.Background(), "../escape.txt", []byte("x")); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(baseDir + "/escape.txt"); err != nil {
		t.Fatalf("expected file inside base dir: %v", err)
	}

	if err := local.Save(context.Background(), "", []byte("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}
