// Package dbtest provides an in-memory stand-in for db.Store. Transactions
// are serialized and roll back by restoring a snapshot.
package dbtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"adminportal/requests/internal/db"
	"adminportal/requests/internal/model"
)

type state struct {
	users     map[int64]model.User
	requests  map[int64]model.Request
	documents map[int64]model.Document
	nextReq   int64
	nextDoc   int64
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[int64]model.User, len(s.users)),
		requests:  make(map[int64]model.Request, len(s.requests)),
		documents: make(map[int64]model.Document, len(s.documents)),
		nextReq:   s.nextReq,
		nextDoc:   s.nextDoc,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	return c
}

type Store struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	data   *state
	failOn map[string]error
}

var _ db.Querier = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &state{
			users:     map[int64]model.User{},
			requests:  map[int64]model.Request{},
			documents: map[int64]model.Document{},
		},
		failOn: map[string]error{},
	}
}

// AddUser inserts a user directly, bypassing any failure injection.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.data.users[u.ID] = u
}

// Fail makes the next call to method return err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method] = err
}

func (s *Store) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.requests)
}

func (s *Store) DocumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.documents)
}

func (s *Store) WithTx(ctx context.Context, fn func(db.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) injected(method string) error {
	if err, ok := s.failOn[method]; ok {
		delete(s.failOn, method)
		return err
	}
	return nil
}

func fkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "foreign key violation"}
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetUser"); err != nil {
		return model.User{}, err
	}
	u, ok := s.data.users[id]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetUserByEmail"); err != nil {
		return model.User{}, err
	}
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, pgx.ErrNoRows
}

func (s *Store) UpsertUser(ctx context.Context, arg db.UpsertUserParams) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpsertUser"); err != nil {
		return model.User{}, err
	}
	u := s.data.users[arg.ID]
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.ID = arg.ID
	u.Email = arg.Email
	u.PasswordHash = arg.PasswordHash
	u.FirstName = arg.FirstName
	u.LastName = arg.LastName
	u.Role = arg.Role
	u.Active = arg.Active
	s.data.users[arg.ID] = u
	return u, nil
}

func (s *Store) CreateRequest(ctx context.Context, arg db.CreateRequestParams) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateRequest"); err != nil {
		return model.Request{}, err
	}
	if _, ok := s.data.users[arg.OwnerID]; !ok {
		return model.Request{}, fkViolation("requests_owner_id_fkey")
	}
	s.data.nextReq++
	r := model.Request{
		ID:          s.data.nextReq,
		OwnerID:     arg.OwnerID,
		Type:        arg.Type,
		Title:       arg.Title,
		Description: arg.Description,
		StartDate:   arg.StartDate,
		EndDate:     arg.EndDate,
		Status:      model.StatusPending,
		CreatedAt:   arg.CreatedAt.UTC(),
		UpdatedAt:   arg.CreatedAt.UTC(),
	}
	s.data.requests[r.ID] = r
	return r, nil
}

func (s *Store) GetRequest(ctx context.Context, id int64) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetRequest"); err != nil {
		return model.Request{}, err
	}
	r, ok := s.data.requests[id]
	if !ok {
		return model.Request{}, pgx.ErrNoRows
	}
	return r, nil
}

func (s *Store) GetRequestForUpdate(ctx context.Context, id int64) (model.Request, error) {
	s.mu.Lock()
	err := s.injected("GetRequestForUpdate")
	s.mu.Unlock()
	if err != nil {
		return model.Request{}, err
	}
	return s.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, arg db.ListRequestsParams) ([]model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListRequests"); err != nil {
		return nil, err
	}
	items := []model.Request{}
	for _, r := range s.data.requests {
		if arg.OwnerID != nil && r.OwnerID != *arg.OwnerID {
			continue
		}
		if arg.Status != nil && r.Status != *arg.Status {
			continue
		}
		if arg.Type != nil && r.Type != *arg.Type {
			continue
		}
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	offset := int(arg.Offset)
	if offset >= len(items) {
		return []model.Request{}, nil
	}
	items = items[offset:]
	if int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

func (s *Store) UpdateRequest(ctx context.Context, arg db.UpdateRequestParams) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateRequest"); err != nil {
		return model.Request{}, err
	}
	r, ok := s.data.requests[arg.ID]
	if !ok {
		return model.Request{}, pgx.ErrNoRows
	}
	if arg.DecidedBy != nil {
		if _, ok := s.data.users[*arg.DecidedBy]; !ok {
			return model.Request{}, fkViolation("requests_decided_by_fkey")
		}
	}
	r.Type = arg.Type
	r.Title = arg.Title
	r.Description = arg.Description
	r.StartDate = arg.StartDate
	r.EndDate = arg.EndDate
	r.Status = arg.Status
	r.Comment = arg.Comment
	r.DecidedBy = arg.DecidedBy
	r.DecidedAt = arg.DecidedAt
	r.UpdatedAt = arg.UpdatedAt.UTC()
	s.data.requests[r.ID] = r
	return r, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DeleteRequest"); err != nil {
		return 0, err
	}
	if _, ok := s.data.requests[id]; !ok {
		return 0, nil
	}
	delete(s.data.requests, id)
	for docID, d := range s.data.documents {
		if d.RequestID == id {
			delete(s.data.documents, docID)
		}
	}
	return 1, nil
}

func (s *Store) CreateDocument(ctx context.Context, arg db.CreateDocumentParams) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateDocument"); err != nil {
		return model.Document{}, err
	}
	if _, ok := s.data.requests[arg.RequestID]; !ok {
		return model.Document{}, fkViolation("documents_request_id_fkey")
	}
	for _, d := range s.data.documents {
		if d.StoredName == arg.StoredName {
			return model.Document{}, &pgconn.PgError{Code: "23505", ConstraintName: "documents_stored_name_key"}
		}
	}
	s.data.nextDoc++
	d := model.Document{
		ID:           s.data.nextDoc,
		RequestID:    arg.RequestID,
		StoredName:   arg.StoredName,
		OriginalName: arg.OriginalName,
		StoragePath:  arg.StoragePath,
		Size:         arg.Size,
		ContentType:  arg.ContentType,
		UploadedAt:   arg.UploadedAt.UTC(),
	}
	s.data.documents[d.ID] = d
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, arg db.GetDocumentParams) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetDocument"); err != nil {
		return model.Document{}, err
	}
	d, ok := s.data.documents[arg.ID]
	if !ok || d.RequestID != arg.RequestID {
		return model.Document{}, pgx.ErrNoRows
	}
	return d, nil
}

func (s *Store) GetDocumentForUpdate(ctx context.Context, arg db.GetDocumentParams) (model.Document, error) {
	s.mu.Lock()
	err := s.injected("GetDocumentForUpdate")
	s.mu.Unlock()
	if err != nil {
		return model.Document{}, err
	}
	return s.GetDocument(ctx, arg)
}

func (s *Store) ListDocumentsByRequest(ctx context.Context, requestID int64) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListDocumentsByRequest"); err != nil {
		return nil, err
	}
	items := []model.Document{}
	for _, d := range s.data.documents {
		if d.RequestID == requestID {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].UploadedAt.Before(items[j].UploadedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Store) CountDocumentsByRequest(ctx context.Context, requestID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CountDocumentsByRequest"); err != nil {
		return 0, err
	}
	var n int64
	for _, d := range s.data.documents {
		if d.RequestID == requestID {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DeleteDocument"); err != nil {
		return 0, err
	}
	if _, ok := s.data.documents[id]; !ok {
		return 0, nil
	}
	delete(s.data.documents, id)
	return 1, nil
}

func (s *Store) DeleteDocumentsByRequest(ctx context.Context, requestID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DeleteDocumentsByRequest"); err != nil {
		return 0, err
	}
	var n int64
	for id, d := range s.data.documents {
		if d.RequestID == requestID {
			delete(s.data.documents, id)
			n++
		}
	}
	return n, nil
}
