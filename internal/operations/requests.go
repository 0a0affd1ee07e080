package operations

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"adminportal/requests/internal/db"
	"adminportal/requests/internal/model"
	"adminportal/requests/internal/policy"
	"adminportal/requests/internal/storage"
)

const maxTitleLength = 200

type CreateInput struct {
	Type        string
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

type ListOptions struct {
	Skip   int
	Limit  int
	Status string
	Type   string
}

// DateField is a patchable optional date. A nil Value clears the date.
type DateField struct {
	Value *time.Time
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Type        *string
	Title       *string
	Description *string
	StartDate   *DateField
	EndDate     *DateField

	Status  *string
	Comment *string

	// ExpectedUpdatedAt, when set, must match the stored updated_at.
	ExpectedUpdatedAt *time.Time
}

func (p Patch) touchesContent() bool {
	return p.Type != nil || p.Title != nil || p.Description != nil || p.StartDate != nil || p.EndDate != nil
}

func (p Patch) touchesStatus() bool {
	return p.Status != nil || p.Comment != nil
}

func (s *Service) CreateRequest(ctx context.Context, id model.Identity, in CreateInput) (model.Request, error) {
	if err := requireIdentity(id); err != nil {
		return model.Request{}, err
	}
	typ, ok := model.ParseRequestType(in.Type)
	if !ok {
		return model.Request{}, validation(ErrInvalidType, "unknown request type %q", in.Type)
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return model.Request{}, err
	}
	start, end := dateOnly(in.StartDate), dateOnly(in.EndDate)
	if err := checkDates(start, end); err != nil {
		return model.Request{}, err
	}

	var created model.Request
	err = s.store.WithTx(ctx, func(q db.Querier) error {
		row, err := q.CreateRequest(ctx, db.CreateRequestParams{
			OwnerID:     id.ID,
			Type:        typ,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			StartDate:   start,
			EndDate:     end,
			CreatedAt:   s.now(),
		})
		if err != nil {
			return classify("create request", err)
		}
		created = row
		return nil
	})
	if err != nil {
		return model.Request{}, err
	}
	s.metrics.RequestCreated(typ)
	return created, nil
}

func (s *Service) ListRequests(ctx context.Context, id model.Identity, opts ListOptions) ([]model.Request, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	params := db.ListRequestsParams{
		Offset: int32(clamp(opts.Skip, 0, 1<<30)),
		Limit:  int32(s.limit(opts.Limit)),
	}
	if strings.TrimSpace(opts.Status) != "" {
		status, ok := model.ParseRequestStatus(opts.Status)
		if !ok {
			return nil, validation(ErrInvalidStatus, "unknown status %q", opts.Status)
		}
		params.Status = &status
	}
	if strings.TrimSpace(opts.Type) != "" {
		typ, ok := model.ParseRequestType(opts.Type)
		if !ok {
			return nil, validation(ErrInvalidType, "unknown request type %q", opts.Type)
		}
		params.Type = &typ
	}
	if !policy.CanListAll(id) {
		owner := id.ID
		params.OwnerID = &owner
	}
	items, err := s.store.ListRequests(ctx, params)
	if err != nil {
		return nil, classify("list requests", err)
	}
	return items, nil
}

func (s *Service) GetRequest(ctx context.Context, id model.Identity, requestID int64) (model.Request, error) {
	if err := requireIdentity(id); err != nil {
		return model.Request{}, err
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if isNoRows(err) {
		return model.Request{}, requestNotFound()
	}
	if err != nil {
		return model.Request{}, classify("load request", err)
	}
	if !policy.CanReadRequest(id, req) {
		return model.Request{}, forbidden()
	}
	return req, nil
}

func (s *Service) UpdateRequest(ctx context.Context, id model.Identity, requestID int64, patch Patch) (model.Request, error) {
	if err := requireIdentity(id); err != nil {
		return model.Request{}, err
	}

	var (
		updated model.Request
		moved   bool
		from    model.RequestStatus
	)
	err := s.store.WithTx(ctx, func(q db.Querier) error {
		current, err := q.GetRequestForUpdate(ctx, requestID)
		if isNoRows(err) {
			return requestNotFound()
		}
		if err != nil {
			return classify("load request", err)
		}
		if !patch.touchesContent() && !patch.touchesStatus() {
			if !policy.CanReadRequest(id, current) {
				return forbidden()
			}
			updated = current
			return nil
		}
		if patch.touchesStatus() && !policy.CanMutateStatus(id) {
			return forbidden()
		}
		if patch.touchesContent() && !policy.CanMutateContent(id, current) {
			return forbidden()
		}
		if patch.ExpectedUpdatedAt != nil && !patch.ExpectedUpdatedAt.Equal(current.UpdatedAt) {
			return newError(KindConflict, ErrStaleRequest, "request was modified by someone else")
		}

		next := current
		changed := false
		if patch.touchesContent() {
			contentChanged, err := s.applyContent(ctx, q, &next, patch)
			if err != nil {
				return err
			}
			changed = changed || contentChanged
		}
		if patch.touchesStatus() {
			statusChanged, err := s.applyTransition(id, &next, patch.Status, patch.Comment)
			if err != nil {
				return err
			}
			changed = changed || statusChanged
		}
		if !changed {
			updated = current
			return nil
		}

		next.UpdatedAt = advance(current.UpdatedAt, s.now())
		row, err := q.UpdateRequest(ctx, db.UpdateRequestParams{
			ID:          next.ID,
			Type:        next.Type,
			Title:       next.Title,
			Description: next.Description,
			StartDate:   next.StartDate,
			EndDate:     next.EndDate,
			Status:      next.Status,
			Comment:     next.Comment,
			DecidedBy:   next.DecidedBy,
			DecidedAt:   next.DecidedAt,
			UpdatedAt:   next.UpdatedAt,
		})
		if err != nil {
			return classify("update request", err)
		}
		updated = row
		moved = row.Status != current.Status
		from = current.Status
		return nil
	})
	if err != nil {
		return model.Request{}, err
	}
	if moved {
		s.metrics.Transitioned(from, updated.Status)
	}
	return updated, nil
}

// applyContent edits owner fields on next. Only pending requests are editable.
func (s *Service) applyContent(ctx context.Context, q db.Querier, next *model.Request, patch Patch) (bool, error) {
	if next.Status != model.StatusPending {
		return false, newError(KindConflict, ErrRequestLocked, "request is no longer pending")
	}
	changed := false
	if patch.Type != nil {
		typ, ok := model.ParseRequestType(*patch.Type)
		if !ok {
			return false, validation(ErrInvalidType, "unknown request type %q", *patch.Type)
		}
		if typ != next.Type {
			if next.Type.AcceptsDocuments() && !typ.AcceptsDocuments() {
				count, err := q.CountDocumentsByRequest(ctx, next.ID)
				if err != nil {
					return false, classify("count documents", err)
				}
				if count > 0 {
					return false, validation(ErrDocumentsAttached, "remove the %d attached document(s) before changing the type to %s", count, typ)
				}
			}
			next.Type = typ
			changed = true
		}
	}
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return false, err
		}
		if title != next.Title {
			next.Title = title
			changed = true
		}
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description != next.Description {
			next.Description = description
			changed = true
		}
	}
	if patch.StartDate != nil {
		start := dateOnly(patch.StartDate.Value)
		if !sameDate(start, next.StartDate) {
			next.StartDate = start
			changed = true
		}
	}
	if patch.EndDate != nil {
		end := dateOnly(patch.EndDate.Value)
		if !sameDate(end, next.EndDate) {
			next.EndDate = end
			changed = true
		}
	}
	if err := checkDates(next.StartDate, next.EndDate); err != nil {
		return false, err
	}
	return changed, nil
}

func (s *Service) DeleteRequest(ctx context.Context, id model.Identity, requestID int64) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	var held []storage.Held
	err := s.store.WithTx(ctx, func(q db.Querier) error {
		req, err := q.GetRequestForUpdate(ctx, requestID)
		if isNoRows(err) {
			return requestNotFound()
		}
		if err != nil {
			return classify("load request", err)
		}
		if !policy.CanDelete(id, req) {
			return forbidden()
		}
		docs, err := q.ListDocumentsByRequest(ctx, req.ID)
		if err != nil {
			return classify("list documents", err)
		}
		if _, err := q.DeleteDocumentsByRequest(ctx, req.ID); err != nil {
			return classify("delete documents", err)
		}
		for _, doc := range docs {
			h, err := s.blobs.Quarantine(ctx, doc.StoredName)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return storageFailure("remove document "+doc.OriginalName, err)
			}
			held = append(held, h)
		}
		n, err := q.DeleteRequest(ctx, req.ID)
		if err != nil {
			return classify("delete request", err)
		}
		if n == 0 {
			return requestNotFound()
		}
		return nil
	})
	if err != nil {
		restoreAll(held)
		return err
	}
	purgeAll(held)
	s.metrics.RequestDeleted()
	return nil
}

func (s *Service) limit(requested int) int {
	if requested <= 0 {
		return s.cfg.ListDefaultLimit
	}
	return clamp(requested, 1, s.cfg.ListMaxLimit)
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", validation(ErrInvalidTitle, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", validation(ErrInvalidTitle, "title exceeds %d characters", maxTitleLength)
	}
	return title, nil
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return validation(ErrInvalidDates, "end date is before start date")
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// advance returns now, or a microsecond past prev when the clock has not
// moved, so every change is visible in updated_at.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
