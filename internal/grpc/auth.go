package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const serviceTokenHeader = "x-service-token"

// serviceAuth admits calls carrying the shared token in x-service-token.
type serviceAuth struct {
	token []byte
}

func newServiceAuth(token string) (*serviceAuth, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("service auth token required")
	}
	return &serviceAuth{token: []byte(token)}, nil
}

func (a *serviceAuth) authorize(ctx context.Context) error {
	presented := presentedToken(ctx)
	if presented == "" {
		return status.Error(codes.Unauthenticated, "missing_service_token")
	}
	if subtle.ConstantTimeCompare([]byte(presented), a.token) != 1 {
		return status.Error(codes.PermissionDenied, "invalid_service_token")
	}
	return nil
}

func (a *serviceAuth) unary(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := a.authorize(ctx); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// stream guards server-streaming RPCs such as Health/Watch.
func (a *serviceAuth) stream(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := a.authorize(ss.Context()); err != nil {
		return err
	}
	return handler(srv, ss)
}

func presentedToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(serviceTokenHeader) {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
