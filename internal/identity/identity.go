// Package identity turns bearer credentials into acting identities.
//
// The token only names the user. Role and account state come from the user
// directory on every call, so deactivating a user or changing their role takes
// effect immediately.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"adminportal/requests/internal/auth"
	"adminportal/requests/internal/crypto"
	"adminportal/requests/internal/model"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRevocationDisabled = errors.New("token revocation is not configured")
)

type Directory interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type Service struct {
	cfg     Config
	users   Directory
	revoked Revocations
}

// NewService builds a resolver. revoked may be nil, which disables logout.
func NewService(cfg Config, users Directory, revoked Revocations) *Service {
	return &Service{cfg: cfg, users: users, revoked: revoked}
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

func (s *Service) Resolve(ctx context.Context, credential string) (model.Identity, *auth.Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return model.Identity{}, nil, ErrUnauthenticated
	}
	claims, err := auth.ParseToken(s.cfg.Secret, s.cfg.Issuer, credential)
	if err != nil {
		return model.Identity{}, nil, ErrUnauthenticated
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return model.Identity{}, nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return model.Identity{}, nil, ErrUnauthenticated
		}
	}
	userID, _ := claims.UserID()
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, nil, ErrUnauthenticated
	}
	if err != nil {
		return model.Identity{}, nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active || !user.Role.Valid() {
		return model.Identity{}, nil, ErrUnauthenticated
	}
	return model.Identity{ID: user.ID, Email: user.Email, Role: user.Role}, claims, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active || user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	token, claims, err := auth.NewAccessToken(s.cfg.Secret, s.cfg.Issuer, s.cfg.TTL, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoked == nil {
		return ErrRevocationDisabled
	}
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrUnauthenticated
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
