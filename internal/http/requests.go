package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"adminportal/requests/internal/model"
	"adminportal/requests/internal/operations"
)

const dateLayout = "2006-01-02"

type createRequestBody struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type requestResponse struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"ownerId"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   *string    `json:"startDate"`
	EndDate     *string    `json:"endDate"`
	Status      string     `json:"status"`
	Comment     *string    `json:"comment"`
	DecidedBy   *int64     `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func mapRequest(req model.Request) requestResponse {
	return requestResponse{
		ID:          req.ID,
		OwnerID:     req.OwnerID,
		Type:        string(req.Type),
		Title:       req.Title,
		Description: req.Description,
		StartDate:   formatDate(req.StartDate),
		EndDate:     formatDate(req.EndDate),
		Status:      string(req.Status),
		Comment:     req.Comment,
		DecidedBy:   req.DecidedBy,
		DecidedAt:   req.DecidedAt,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, operations.ErrInvalidDates, "startDate must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, operations.ErrInvalidDates, "endDate must be YYYY-MM-DD")
		return
	}

	req, err := s.ops.CreateRequest(r.Context(), identityFrom(r), operations.CreateInput{
		Type:        body.Type,
		Title:       body.Title,
		Description: body.Description,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapRequest(req))
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, err := queryInt(query.Get("skip"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "skip must be an integer")
		return
	}
	limit, err := queryInt(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
		return
	}

	items, err := s.ops.ListRequests(r.Context(), identityFrom(r), operations.ListOptions{
		Skip:   skip,
		Limit:  limit,
		Status: query.Get("status"),
		Type:   query.Get("type"),
	})
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	resp := make([]requestResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, mapRequest(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	req, err := s.ops.GetRequest(r.Context(), identityFrom(r), requestID)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRequest(req))
}

func (s *Server) handlePatchRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := s.ops.UpdateRequest(r.Context(), identityFrom(r), requestID, patch)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRequest(req))
}

func (s *Server) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	if err := s.ops.DeleteRequest(r.Context(), identityFrom(r), requestID); err != nil {
		writeOpError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodePatch keeps the difference between an absent field and an explicit
// null, which clears optional fields.
func decodePatch(r *http.Request) (operations.Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return operations.Patch{}, errors.New("malformed JSON body")
	}

	var (
		patch operations.Patch
		err   error
	)
	for key, value := range raw {
		switch key {
		case "type":
			patch.Type, err = requiredString(key, value)
		case "title":
			patch.Title, err = requiredString(key, value)
		case "status":
			patch.Status, err = requiredString(key, value)
		case "description":
			patch.Description, err = nullableString(key, value)
		case "comment":
			patch.Comment, err = nullableString(key, value)
		case "startDate":
			patch.StartDate, err = dateField(key, value)
		case "endDate":
			patch.EndDate, err = dateField(key, value)
		case "expectedUpdatedAt":
			if isNull(value) {
				continue
			}
			var ts time.Time
			if err = json.Unmarshal(value, &ts); err != nil {
				err = fmt.Errorf("%s must be an RFC 3339 timestamp", key)
			}
			patch.ExpectedUpdatedAt = &ts
		default:
			err = fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return operations.Patch{}, err
		}
	}
	return patch, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func requiredString(key string, value json.RawMessage) (*string, error) {
	var s string
	if isNull(value) || json.Unmarshal(value, &s) != nil {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}

// nullableString maps null to the empty string, which clears the field.
func nullableString(key string, value json.RawMessage) (*string, error) {
	if isNull(value) {
		empty := ""
		return &empty, nil
	}
	return requiredString(key, value)
}

func dateField(key string, value json.RawMessage) (*operations.DateField, error) {
	if isNull(value) {
		return &operations.DateField{}, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("%s must be a date string", key)
	}
	t, err := parseDate(&s)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &operations.DateField{Value: t}, nil
}

func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, *value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func queryInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
