package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"adminportal/requests/internal/model"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Querier is satisfied by *Queries bound to a pool or to a transaction.
type Querier interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpsertUser(ctx context.Context, arg UpsertUserParams) (model.User, error)

	CreateRequest(ctx context.Context, arg CreateRequestParams) (model.Request, error)
	GetRequest(ctx context.Context, id int64) (model.Request, error)
	GetRequestForUpdate(ctx context.Context, id int64) (model.Request, error)
	ListRequests(ctx context.Context, arg ListRequestsParams) ([]model.Request, error)
	UpdateRequest(ctx context.Context, arg UpdateRequestParams) (model.Request, error)
	DeleteRequest(ctx context.Context, id int64) (int64, error)

	CreateDocument(ctx context.Context, arg CreateDocumentParams) (model.Document, error)
	GetDocument(ctx context.Context, arg GetDocumentParams) (model.Document, error)
	GetDocumentForUpdate(ctx context.Context, arg GetDocumentParams) (model.Document, error)
	ListDocumentsByRequest(ctx context.Context, requestID int64) ([]model.Document, error)
	CountDocumentsByRequest(ctx context.Context, requestID int64) (int64, error)
	DeleteDocument(ctx context.Context, id int64) (int64, error)
	DeleteDocumentsByRequest(ctx context.Context, requestID int64) (int64, error)
}

var _ Querier = (*Queries)(nil)

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func pgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t.UTC(), Valid: true}
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time.UTC()
	return &t
}

func pgTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

func pgText(value *string) pgtype.Text {
	if value == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *value, Valid: true}
}

func textPtr(value pgtype.Text) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func pgInt8(value *int64) pgtype.Int8 {
	if value == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *value, Valid: true}
}

func int8Ptr(value pgtype.Int8) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}
