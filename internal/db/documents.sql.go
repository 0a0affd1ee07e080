package db

import (
	"context"
	"time"

	"adminportal/requests/internal/model"
)

const documentColumns = `id, request_id, stored_name, original_name, storage_path, size_bytes, content_type, uploaded_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.RequestID, &d.StoredName, &d.OriginalName, &d.StoragePath, &d.Size, &d.ContentType, &d.UploadedAt)
	d.UploadedAt = d.UploadedAt.UTC()
	return d, err
}

type CreateDocumentParams struct {
	RequestID    int64
	StoredName   string
	OriginalName string
	StoragePath  string
	Size         int64
	ContentType  string
	UploadedAt   time.Time
}

const createDocument = `
INSERT INTO documents (request_id, stored_name, original_name, storage_path, size_bytes, content_type, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + documentColumns

func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (model.Document, error) {
	return scanDocument(q.db.QueryRow(ctx, createDocument,
		arg.RequestID,
		arg.StoredName,
		arg.OriginalName,
		arg.StoragePath,
		arg.Size,
		arg.ContentType,
		arg.UploadedAt.UTC(),
	))
}

type GetDocumentParams struct {
	RequestID int64
	ID        int64
}

const getDocument = `SELECT ` + documentColumns + ` FROM documents WHERE request_id = $1 AND id = $2`

func (q *Queries) GetDocument(ctx context.Context, arg GetDocumentParams) (model.Document, error) {
	return scanDocument(q.db.QueryRow(ctx, getDocument, arg.RequestID, arg.ID))
}

const getDocumentForUpdate = getDocument + ` FOR UPDATE`

func (q *Queries) GetDocumentForUpdate(ctx context.Context, arg GetDocumentParams) (model.Document, error) {
	return scanDocument(q.db.QueryRow(ctx, getDocumentForUpdate, arg.RequestID, arg.ID))
}

const listDocumentsByRequest = `
SELECT ` + documentColumns + `
FROM documents
WHERE request_id = $1
ORDER BY uploaded_at, id`

func (q *Queries) ListDocumentsByRequest(ctx context.Context, requestID int64) ([]model.Document, error) {
	rows, err := q.db.Query(ctx, listDocumentsByRequest, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.Document{}
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const countDocumentsByRequest = `SELECT count(*) FROM documents WHERE request_id = $1`

func (q *Queries) CountDocumentsByRequest(ctx context.Context, requestID int64) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocumentsByRequest, requestID).Scan(&count)
	return count, err
}

const deleteDocument = `DELETE FROM documents WHERE id = $1`

func (q *Queries) DeleteDocument(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocument, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteDocumentsByRequest = `DELETE FROM documents WHERE request_id = $1`

func (q *Queries) DeleteDocumentsByRequest(ctx context.Context, requestID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentsByRequest, requestID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
