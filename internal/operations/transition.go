package operations

import (
	"strings"

	"adminportal/requests/internal/model"
	"adminportal/requests/internal/policy"
)

// CheckTransition reports whether a request may move from one status to
// another. Staying in place is always allowed; otherwise only PENDING may be
// left, and only for a terminal status.
func CheckTransition(from, to model.RequestStatus) error {
	if from == to {
		return nil
	}
	if from == model.StatusPending && to.Terminal() {
		return nil
	}
	return validation(ErrInvalidTransition, "cannot move request from %s to %s", from, to)
}

// applyTransition applies a status and/or comment change to next. A comment
// without a status is treated as a transition to the current status.
func (s *Service) applyTransition(id model.Identity, next *model.Request, rawStatus, rawComment *string) (bool, error) {
	if !policy.CanMutateStatus(id) {
		return false, forbidden()
	}
	target := next.Status
	if rawStatus != nil {
		status, ok := model.ParseRequestStatus(*rawStatus)
		if !ok {
			return false, validation(ErrInvalidStatus, "unknown status %q", *rawStatus)
		}
		target = status
	}
	if err := CheckTransition(next.Status, target); err != nil {
		return false, err
	}

	comment := next.Comment
	if rawComment != nil {
		trimmed := strings.TrimSpace(*rawComment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}
	if s.cfg.RequireRejectionComment && target == model.StatusRejected && target != next.Status && comment == nil {
		return false, validation(ErrCommentRequired, "a comment is required to reject a request")
	}

	changed := false
	if !sameText(comment, next.Comment) {
		next.Comment = comment
		changed = true
	}
	if target != next.Status {
		decidedBy := id.ID
		decidedAt := s.now()
		next.Status = target
		next.DecidedBy = &decidedBy
		next.DecidedAt = &decidedAt
		changed = true
	}
	return changed, nil
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
