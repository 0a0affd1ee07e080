package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"adminportal/requests/internal/model"
)

const requestColumns = `id, owner_id, request_type, title, description, start_date, end_date, status, comment, decided_by, decided_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...interface{}) error }) (model.Request, error) {
	var (
		r           model.Request
		requestType string
		status      string
		startDate   pgtype.Date
		endDate     pgtype.Date
		comment     pgtype.Text
		decidedBy   pgtype.Int8
		decidedAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&requestType,
		&r.Title,
		&r.Description,
		&startDate,
		&endDate,
		&status,
		&comment,
		&decidedBy,
		&decidedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return model.Request{}, err
	}
	r.Type = model.RequestType(requestType)
	r.Status = model.RequestStatus(status)
	r.StartDate = datePtr(startDate)
	r.EndDate = datePtr(endDate)
	r.Comment = textPtr(comment)
	r.DecidedBy = int8Ptr(decidedBy)
	r.DecidedAt = timePtr(decidedAt)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

type CreateRequestParams struct {
	OwnerID     int64
	Type        model.RequestType
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
}

const createRequest = `
INSERT INTO requests (owner_id, request_type, title, description, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $7)
RETURNING ` + requestColumns

func (q *Queries) CreateRequest(ctx context.Context, arg CreateRequestParams) (model.Request, error) {
	return scanRequest(q.db.QueryRow(ctx, createRequest,
		arg.OwnerID,
		string(arg.Type),
		arg.Title,
		arg.Description,
		pgDate(arg.StartDate),
		pgDate(arg.EndDate),
		arg.CreatedAt.UTC(),
	))
}

const getRequest = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

func (q *Queries) GetRequest(ctx context.Context, id int64) (model.Request, error) {
	return scanRequest(q.db.QueryRow(ctx, getRequest, id))
}

const getRequestForUpdate = getRequest + ` FOR UPDATE`

func (q *Queries) GetRequestForUpdate(ctx context.Context, id int64) (model.Request, error) {
	return scanRequest(q.db.QueryRow(ctx, getRequestForUpdate, id))
}

type ListRequestsParams struct {
	OwnerID *int64
	Status  *model.RequestStatus
	Type    *model.RequestType
	Offset  int32
	Limit   int32
}

const listRequests = `
SELECT ` + requestColumns + `
FROM requests
WHERE ($1::bigint IS NULL OR owner_id = $1)
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR request_type = $3)
ORDER BY created_at DESC, id DESC
OFFSET $4 LIMIT $5`

func (q *Queries) ListRequests(ctx context.Context, arg ListRequestsParams) ([]model.Request, error) {
	var status, requestType pgtype.Text
	if arg.Status != nil {
		status = pgtype.Text{String: string(*arg.Status), Valid: true}
	}
	if arg.Type != nil {
		requestType = pgtype.Text{String: string(*arg.Type), Valid: true}
	}
	rows, err := q.db.Query(ctx, listRequests, pgInt8(arg.OwnerID), status, requestType, arg.Offset, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.Request{}
	for rows.Next() {
		item, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type UpdateRequestParams struct {
	ID          int64
	Type        model.RequestType
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      model.RequestStatus
	Comment     *string
	DecidedBy   *int64
	DecidedAt   *time.Time
	UpdatedAt   time.Time
}

const updateRequest = `
UPDATE requests
SET request_type = $2,
    title = $3,
    description = $4,
    start_date = $5,
    end_date = $6,
    status = $7,
    comment = $8,
    decided_by = $9,
    decided_at = $10,
    updated_at = $11
WHERE id = $1
RETURNING ` + requestColumns

func (q *Queries) UpdateRequest(ctx context.Context, arg UpdateRequestParams) (model.Request, error) {
	return scanRequest(q.db.QueryRow(ctx, updateRequest,
		arg.ID,
		string(arg.Type),
		arg.Title,
		arg.Description,
		pgDate(arg.StartDate),
		pgDate(arg.EndDate),
		string(arg.Status),
		pgText(arg.Comment),
		pgInt8(arg.DecidedBy),
		pgTime(arg.DecidedAt),
		arg.UpdatedAt.UTC(),
	))
}

const deleteRequest = `DELETE FROM requests WHERE id = $1`

func (q *Queries) DeleteRequest(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRequest, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
