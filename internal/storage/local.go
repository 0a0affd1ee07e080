package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const trashDir = ".trash"

type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("storage root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, trashDir), 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Location(key string) string {
	return filepath.Join(l.root, key)
}

func (l *Local) Write(ctx context.Context, key string, r io.Reader, limit int64) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target := l.Location(key)
	if _, err := os.Stat(target); err == nil {
		return 0, ErrExists
	}

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	written, copyErr := io.Copy(tmp, io.LimitReader(r, limit+1))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		return 0, errors.Join(copyErr, closeErr)
	}
	if written > limit {
		_ = os.Remove(tmpPath)
		return 0, ErrTooLarge
	}
	if err := os.Link(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrExists
		}
		return 0, err
	}
	_ = os.Remove(tmpPath)
	return written, nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(l.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(l.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(l.Location(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) Quarantine(ctx context.Context, key string) (Held, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	held := &localHeld{
		original: l.Location(key),
		aside:    filepath.Join(l.root, trashDir, key+"."+uuid.NewString()),
	}
	if err := os.Rename(held.original, held.aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return held, nil
}

type localHeld struct {
	original string
	aside    string
}

func (h *localHeld) Restore() error {
	return os.Rename(h.aside, h.original)
}

func (h *localHeld) Purge() error {
	err := os.Remove(h.aside)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) || key != filepath.Base(key) {
		return ErrInvalidKey
	}
	return nil
}
