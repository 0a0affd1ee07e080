package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adminportal/requests/internal/auth"
	"adminportal/requests/internal/identity"
	"adminportal/requests/internal/model"
	"adminportal/requests/internal/operations"
)

type Server struct {
	identity *identity.Service
	ops      *operations.Service
}

func NewServer(identities *identity.Service, ops *operations.Service) *Server {
	return &Server{identity: identities, ops: ops}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.Route("/requests", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/", s.handleCreateRequest)
		r.Get("/", s.handleListRequests)
		r.Get("/{requestId}", s.handleGetRequest)
		r.Patch("/{requestId}", s.handlePatchRequest)
		r.Delete("/{requestId}", s.handleDeleteRequest)

		r.Post("/{requestId}/documents", s.handleUploadDocuments)
		r.Get("/{requestId}/documents", s.handleListDocuments)
		r.Get("/{requestId}/documents/{documentId}", s.handleDownloadDocument)
		r.Delete("/{requestId}/documents/{documentId}", s.handleDeleteDocument)
	})

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	User        userSummary `json:"user"`
}

type userSummary struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	session, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if err != nil {
		logServerError(r, "login", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: session.Token,
		ExpiresAt:   session.ExpiresAt,
		User: userSummary{
			ID:        session.User.ID,
			Email:     session.User.Email,
			FirstName: session.User.FirstName,
			LastName:  session.User.LastName,
			Role:      string(session.User.Role),
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	err := s.identity.Logout(r.Context(), p.claims)
	if errors.Is(err, identity.ErrRevocationDisabled) {
		writeError(w, http.StatusNotImplemented, "revocation_disabled", "logout is not available")
		return
	}
	if errors.Is(err, identity.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, "invalid_token", "token cannot be revoked")
		return
	}
	if err != nil {
		logServerError(r, "logout", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	id := principalFromContext(r.Context()).identity
	writeJSON(w, http.StatusOK, userSummary{ID: id.ID, Email: id.Email, Role: string(id.Role)})
}

type principal struct {
	identity model.Identity
	claims   *auth.Claims
}

type principalKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
			return
		}

		id, claims, err := s.identity.Resolve(r.Context(), token)
		if errors.Is(err, identity.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
			return
		}
		if err != nil {
			logServerError(r, "resolve identity", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal{identity: id, claims: claims})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func identityFrom(r *http.Request) model.Identity {
	return principalFromContext(r.Context()).identity
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeOpError maps operation failures to HTTP. Only server-side faults are
// logged; their details never reach the client.
func writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *operations.Error
	if !errors.As(err, &opErr) {
		logServerError(r, "unclassified", err)
		writeError(w, http.StatusInternalServerError, operations.ErrServerError, "internal error")
		return
	}
	switch opErr.Kind {
	case operations.KindUnauthenticated:
		writeError(w, http.StatusUnauthorized, opErr.Code, opErr.Message)
	case operations.KindForbidden:
		writeError(w, http.StatusForbidden, opErr.Code, opErr.Message)
	case operations.KindNotFound:
		writeError(w, http.StatusNotFound, opErr.Code, opErr.Message)
	case operations.KindValidation:
		writeError(w, http.StatusBadRequest, opErr.Code, opErr.Message)
	case operations.KindConflict:
		writeError(w, http.StatusConflict, opErr.Code, opErr.Message)
	default:
		logServerError(r, opErr.Message, err)
		writeError(w, http.StatusInternalServerError, opErr.Code, "internal error")
	}
}

func logServerError(r *http.Request, action string, err error) {
	log.Printf("[%s] %s %s: %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, action, err)
}
