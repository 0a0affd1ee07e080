// Package operations implements the request lifecycle: creation, listing,
// updates through the approval state machine, cascade deletion and document
// attachments. Every entry point takes an already resolved identity.
package operations

import (
	"context"
	"log"
	"strings"
	"time"

	"adminportal/requests/internal/db"
	"adminportal/requests/internal/metrics"
	"adminportal/requests/internal/model"
	"adminportal/requests/internal/storage"
)

// Store is the persistence boundary. *db.Store satisfies it.
type Store interface {
	db.Querier
	WithTx(ctx context.Context, fn func(db.Querier) error) error
}

var DefaultExtensions = []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"}

type Config struct {
	MaxDocumentBytes        int64
	MaxUploadFiles          int
	AllowedExtensions       []string
	ListDefaultLimit        int
	ListMaxLimit            int
	RequireRejectionComment bool
	Now                     func() time.Time
}

type Service struct {
	store      Store
	blobs      storage.Blobs
	metrics    *metrics.Metrics
	cfg        Config
	extensions map[string]struct{}
}

func NewService(store Store, blobs storage.Blobs, m *metrics.Metrics, cfg Config) *Service {
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 5 << 20
	}
	if cfg.MaxUploadFiles <= 0 {
		cfg.MaxUploadFiles = 10
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultExtensions
	}
	if cfg.ListDefaultLimit <= 0 {
		cfg.ListDefaultLimit = 50
	}
	if cfg.ListMaxLimit <= 0 {
		cfg.ListMaxLimit = 500
	}
	if cfg.ListDefaultLimit > cfg.ListMaxLimit {
		cfg.ListDefaultLimit = cfg.ListMaxLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	extensions := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Service{store: store, blobs: blobs, metrics: m, cfg: cfg, extensions: extensions}
}

func (s *Service) MaxDocumentBytes() int64 { return s.cfg.MaxDocumentBytes }

func (s *Service) MaxUploadFiles() int { return s.cfg.MaxUploadFiles }

// now is truncated to the precision PostgreSQL stores.
func (s *Service) now() time.Time {
	return s.cfg.Now().UTC().Truncate(time.Microsecond)
}

func requireIdentity(id model.Identity) error {
	if id.ID <= 0 || !id.Role.Valid() {
		return newError(KindUnauthenticated, ErrUnauthenticated, "authentication required")
	}
	return nil
}

// restoreAll puts quarantined objects back after a failed transaction.
func restoreAll(held []storage.Held) {
	for _, h := range held {
		if err := h.Restore(); err != nil {
			log.Printf("restore quarantined document: %v", err)
		}
	}
}

func purgeAll(held []storage.Held) {
	for _, h := range held {
		if err := h.Purge(); err != nil {
			log.Printf("purge quarantined document: %v", err)
		}
	}
}
