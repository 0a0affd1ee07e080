package operations

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

const (
	ErrUnauthenticated   = "unauthenticated"
	ErrForbidden         = "forbidden"
	ErrRequestNotFound   = "request_not_found"
	ErrDocumentNotFound  = "document_not_found"
	ErrInvalidType       = "invalid_type"
	ErrInvalidTitle      = "invalid_title"
	ErrInvalidDates      = "invalid_dates"
	ErrInvalidStatus     = "invalid_status"
	ErrInvalidTransition = "invalid_transition"
	ErrCommentRequired   = "comment_required"
	ErrRequestLocked     = "request_locked"
	ErrStaleRequest      = "stale_request"
	ErrDocumentsAttached = "documents_attached"
	ErrUnknownOwner      = "unknown_owner"
	ErrUnknownDecider    = "unknown_decider"
	ErrInvalidRequest    = "invalid_request"
	ErrNoFiles           = "no_files"
	ErrTooManyFiles      = "too_many_files"
	ErrFileTooLarge      = "file_too_large"
	ErrUnsupportedType   = "unsupported_type"
	ErrStorageError      = "storage_error"
	ErrServerError       = "server_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, KindInternal when it is not an *Error.
func KindOf(err error) Kind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindInternal
}

// CodeOf reports the stable code of err, ErrServerError when it is not an *Error.
func CodeOf(err error) string {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	return ErrServerError
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func validation(code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, fmt.Sprintf(format, args...))
}

func forbidden() *Error {
	return newError(KindForbidden, ErrForbidden, "operation not permitted")
}

func requestNotFound() *Error {
	return newError(KindNotFound, ErrRequestNotFound, "request not found")
}

func documentNotFound() *Error {
	return newError(KindNotFound, ErrDocumentNotFound, "document not found")
}

func storageFailure(action string, err error) *Error {
	return &Error{Kind: KindStorage, Code: ErrStorageError, Message: action, Err: err}
}

// classify turns driver errors into operation errors. Errors that are already
// classified pass through untouched.
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return foreignKeyError(pgErr, err)
		case "23514", "22007", "22008":
			return &Error{Kind: KindValidation, Code: ErrInvalidRequest, Message: pgErr.Message, Err: err}
		}
	}
	return &Error{Kind: KindInternal, Code: ErrServerError, Message: action, Err: fmt.Errorf("%s: %w", action, err)}
}

// Constraint names are the PostgreSQL defaults for the schema's REFERENCES clauses.
func foreignKeyError(pgErr *pgconn.PgError, err error) *Error {
	switch pgErr.ConstraintName {
	case "requests_owner_id_fkey":
		return &Error{Kind: KindValidation, Code: ErrUnknownOwner, Message: "owner does not exist", Err: err}
	case "requests_decided_by_fkey":
		return &Error{Kind: KindValidation, Code: ErrUnknownDecider, Message: "deciding user does not exist", Err: err}
	case "documents_request_id_fkey":
		// the request was deleted concurrently
		return &Error{Kind: KindNotFound, Code: ErrRequestNotFound, Message: "request not found", Err: err}
	default:
		return &Error{Kind: KindValidation, Code: ErrInvalidRequest, Message: "referenced record does not exist", Err: err}
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
