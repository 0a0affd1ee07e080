package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	return store
}

func TestWriteOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestLocal(t)
	payload := bytes.Repeat([]byte("pdf"), 1000)

	n, err := store.Write(ctx, "7_1_abc.pdf", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("expected %d bytes written, got %d", len(payload), n)
	}

	rc, err := store.Open(ctx, "7_1_abc.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("content mismatch")
	}
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	ctx := context.Background()
	store := newTestLocal(t)

	_, err := store.Write(ctx, "big.pdf", bytes.NewReader(make([]byte, 11)), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if ok, _ := store.Exists(ctx, "big.pdf"); ok {
		t.Fatalf("oversized object should not be kept")
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestLocal(t)
	if _, err := store.Write(ctx, "a.pdf", bytes.NewReader([]byte("one")), 10); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Write(ctx, "a.pdf", bytes.NewReader([]byte("two")), 10); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestLocal(t)
	for _, key := range []string{"", "../escape.pdf", "nested/file.pdf", ".hidden", `win\path.pdf`} {
		if _, err := store.Write(ctx, key, bytes.NewReader(nil), 10); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestDeleteMissing(t *testing.T) {
	store := newTestLocal(t)
	if err := store.Delete(context.Background(), "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Open(context.Background(), "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on open, got %v", err)
	}
}

func TestQuarantineRestoreAndPurge(t *testing.T) {
	ctx := context.Background()
	store := newTestLocal(t)
	for _, key := range []string{"keep.pdf", "drop.pdf"} {
		if _, err := store.Write(ctx, key, bytes.NewReader([]byte(key)), 100); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}

	kept, err := store.Quarantine(ctx, "keep.pdf")
	if err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if ok, _ := store.Exists(ctx, "keep.pdf"); ok {
		t.Fatalf("quarantined object should not be visible")
	}
	if err := kept.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if ok, _ := store.Exists(ctx, "keep.pdf"); !ok {
		t.Fatalf("restored object should be visible")
	}

	dropped, err := store.Quarantine(ctx, "drop.pdf")
	if err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if err := dropped.Purge(); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if ok, _ := store.Exists(ctx, "drop.pdf"); ok {
		t.Fatalf("purged object should be gone")
	}

	if _, err := store.Quarantine(ctx, "drop.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing object, got %v", err)
	}
}
