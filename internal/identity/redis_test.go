package identity

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisRevocations(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	store := NewRedisRevocations(client)
	tokenID := uuid.NewString()

	revoked, err := store.IsRevoked(ctx, tokenID)
	if err != nil || revoked {
		t.Fatalf("fresh token should not be revoked: %v %v", revoked, err)
	}
	if err := store.Revoke(ctx, tokenID, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = store.IsRevoked(ctx, tokenID)
	if err != nil || !revoked {
		t.Fatalf("expected token to be revoked: %v %v", revoked, err)
	}
	ttl, err := client.TTL(ctx, revokedTokenKey(tokenID)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v (%v)", ttl, err)
	}

	expired := uuid.NewString()
	if err := store.Revoke(ctx, expired, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, expired); revoked {
		t.Fatalf("already expired token needs no revocation entry")
	}
}
