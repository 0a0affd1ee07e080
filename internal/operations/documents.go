package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"
	"strings"

	"adminportal/requests/internal/crypto"
	"adminportal/requests/internal/db"
	"adminportal/requests/internal/model"
	"adminportal/requests/internal/policy"
	"adminportal/requests/internal/storage"
)

// FileBlob is one uploaded file. Size is the declared size; the stored size
// is whatever was actually read from Content.
type FileBlob struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

func (s *Service) UploadDocuments(ctx context.Context, id model.Identity, requestID int64, files []FileBlob) ([]model.Document, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	var (
		written []string
		docs    []model.Document
	)
	err := s.store.WithTx(ctx, func(q db.Querier) error {
		req, err := q.GetRequestForUpdate(ctx, requestID)
		if isNoRows(err) {
			return requestNotFound()
		}
		if err != nil {
			return classify("load request", err)
		}
		if !policy.CanAttachDocuments(id, req) {
			return forbidden()
		}
		if len(files) == 0 {
			return validation(ErrNoFiles, "no files were provided")
		}
		if len(files) > s.cfg.MaxUploadFiles {
			return validation(ErrTooManyFiles, "at most %d files per upload", s.cfg.MaxUploadFiles)
		}

		exts := make([]string, len(files))
		for i, f := range files {
			name := originalName(f.Name)
			if f.Size > s.cfg.MaxDocumentBytes {
				return validation(ErrFileTooLarge, "%s exceeds the %d byte limit", name, s.cfg.MaxDocumentBytes)
			}
			ext := extension(name)
			if _, ok := s.extensions[ext]; !ok {
				return validation(ErrUnsupportedType, "%s has an unsupported file type", name)
			}
			exts[i] = ext
		}

		for i, f := range files {
			name := originalName(f.Name)
			stored, err := s.storedName(req.ID, exts[i])
			if err != nil {
				return storageFailure("generate file name", err)
			}
			n, err := s.blobs.Write(ctx, stored, f.Content, s.cfg.MaxDocumentBytes)
			if errors.Is(err, storage.ErrTooLarge) {
				return validation(ErrFileTooLarge, "%s exceeds the %d byte limit", name, s.cfg.MaxDocumentBytes)
			}
			if err != nil {
				return storageFailure("store "+name, err)
			}
			written = append(written, stored)

			doc, err := q.CreateDocument(ctx, db.CreateDocumentParams{
				RequestID:    req.ID,
				StoredName:   stored,
				OriginalName: name,
				StoragePath:  s.blobs.Location(stored),
				Size:         n,
				ContentType:  contentType(f.ContentType, exts[i]),
				UploadedAt:   s.now(),
			})
			if err != nil {
				return classify("record "+name, err)
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, written)
		if KindOf(err) == KindValidation || KindOf(err) == KindStorage {
			s.metrics.UploadFailed(CodeOf(err))
		}
		return nil, err
	}
	s.metrics.Uploaded(len(docs))
	return docs, nil
}

func (s *Service) ListDocuments(ctx context.Context, id model.Identity, requestID int64) ([]model.Document, error) {
	if _, err := s.GetRequest(ctx, id, requestID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocumentsByRequest(ctx, requestID)
	if err != nil {
		return nil, classify("list documents", err)
	}
	return docs, nil
}

// DownloadDocument returns the document metadata and its content. The caller
// must close the reader.
func (s *Service) DownloadDocument(ctx context.Context, id model.Identity, requestID, documentID int64) (model.Document, io.ReadCloser, error) {
	if _, err := s.GetRequest(ctx, id, requestID); err != nil {
		return model.Document{}, nil, err
	}
	doc, err := s.store.GetDocument(ctx, db.GetDocumentParams{RequestID: requestID, ID: documentID})
	if isNoRows(err) {
		return model.Document{}, nil, documentNotFound()
	}
	if err != nil {
		return model.Document{}, nil, classify("load document", err)
	}
	rc, err := s.blobs.Open(ctx, doc.StoredName)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Document{}, nil, documentNotFound()
	}
	if err != nil {
		return model.Document{}, nil, storageFailure("open "+doc.OriginalName, err)
	}
	return doc, rc, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id model.Identity, requestID, documentID int64) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	var held storage.Held
	err := s.store.WithTx(ctx, func(q db.Querier) error {
		req, err := q.GetRequestForUpdate(ctx, requestID)
		if isNoRows(err) {
			return requestNotFound()
		}
		if err != nil {
			return classify("load request", err)
		}
		if !policy.CanDeleteDocument(id, req) {
			return forbidden()
		}
		doc, err := q.GetDocumentForUpdate(ctx, db.GetDocumentParams{RequestID: requestID, ID: documentID})
		if isNoRows(err) {
			return documentNotFound()
		}
		if err != nil {
			return classify("load document", err)
		}
		held, err = s.blobs.Quarantine(ctx, doc.StoredName)
		if errors.Is(err, storage.ErrNotFound) {
			return documentNotFound()
		}
		if err != nil {
			return storageFailure("remove "+doc.OriginalName, err)
		}
		if _, err := q.DeleteDocument(ctx, doc.ID); err != nil {
			return classify("delete document", err)
		}
		return nil
	})
	if err != nil {
		if held != nil {
			restoreAll([]storage.Held{held})
		}
		return err
	}
	purgeAll([]storage.Held{held})
	return nil
}

func (s *Service) storedName(requestID int64, ext string) (string, error) {
	suffix, err := crypto.RandomHex(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d_%d_%s.%s", requestID, s.cfg.Now().UnixNano(), suffix, ext), nil
}

// discard removes objects written by a failed batch.
func (s *Service) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("discard %s: %v", key, err)
		}
	}
}

func originalName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func contentType(declared, ext string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension("." + ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
