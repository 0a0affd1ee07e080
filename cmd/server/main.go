package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"adminportal/requests/internal/config"
	"adminportal/requests/internal/db"
	portalgrpc "adminportal/requests/internal/grpc"
	internalhttp "adminportal/requests/internal/http"
	"adminportal/requests/internal/identity"
	"adminportal/requests/internal/metrics"
	"adminportal/requests/internal/operations"
	"adminportal/requests/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	probes := map[string]portalgrpc.Probe{"database": pool.Ping}

	var revocations identity.Revocations
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		revocations = identity.NewRedisRevocations(redisClient)
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Printf("REDIS_ADDR not set, token revocation disabled")
	}

	blobs, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	identities := identity.NewService(identity.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.AccessTokenTTL,
	}, store, revocations)
	ops := operations.NewService(store, blobs, metrics.New(prometheus.DefaultRegisterer), operations.Config{
		MaxDocumentBytes:        cfg.MaxDocumentBytes,
		MaxUploadFiles:          cfg.MaxUploadFiles,
		ListDefaultLimit:        cfg.ListDefaultLimit,
		ListMaxLimit:            cfg.ListMaxLimit,
		RequireRejectionComment: cfg.RequireRejectionComment,
	})

	server := internalhttp.NewServer(identities, ops)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer, err = portalgrpc.NewServer(cfg.ServiceAuthToken, probes)
		if err != nil {
			log.Fatalf("grpc service auth init failed: %v", err)
		}
		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				log.Fatalf("grpc listen error: %v", err)
			}
			log.Printf("requests grpc listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(listener); err != nil {
				log.Fatalf("grpc server error: %v", err)
			}
		}()
	}

	go func() {
		log.Printf("requests http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}
