package grpc

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name under which the request portal reports health.
const ServiceName = "adminportal.requests"

// Probe checks a dependency the portal cannot serve without.
type Probe func(ctx context.Context) error

type HealthServer struct {
	healthpb.UnimplementedHealthServer
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthServer(probes map[string]Probe) *HealthServer {
	return &HealthServer{probes: probes, timeout: 2 * time.Second}
}

// Check reports SERVING only when every probe passes. The empty service name
// and ServiceName are equivalent.
func (h *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVICE_UNKNOWN}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			log.Printf("health probe %s failed: %v", name, err)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// NewServer builds a gRPC server whose unary and streaming calls all require
// the service token.
func NewServer(serviceToken string, probes map[string]Probe) (*grpc.Server, error) {
	auth, err := newServiceAuth(serviceToken)
	if err != nil {
		return nil, err
	}
	server := grpc.NewServer(
		grpc.UnaryInterceptor(auth.unary),
		grpc.StreamInterceptor(auth.stream),
	)
	healthpb.RegisterHealthServer(server, NewHealthServer(probes))
	return server, nil
}
