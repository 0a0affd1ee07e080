package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"adminportal/requests/internal/auth"
	"adminportal/requests/internal/crypto"
	"adminportal/requests/internal/db/dbtest"
	"adminportal/requests/internal/model"
)

func TestSeedUsersIsIdempotent(t *testing.T) {
	store := dbtest.New()
	ctx := context.Background()

	if _, err := seedUsers(ctx, store, "short"); err == nil {
		t.Fatalf("expected short password to be refused")
	}

	for i := 0; i < 2; i++ {
		users, err := seedUsers(ctx, store, "correct horse")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if len(users) != 4 {
			t.Fatalf("expected 4 accounts, got %d", len(users))
		}
	}

	roles := map[int64]model.Role{1: model.RoleAdmin, 2: model.RoleSecretary, 3: model.RoleTeacher, 4: model.RoleStaff}
	for id, role := range roles {
		user, err := store.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if user.Role != role || !user.Active {
			t.Fatalf("unexpected account %d: %+v", id, user)
		}
		if err := crypto.CheckPassword(user.PasswordHash, "correct horse"); err != nil {
			t.Fatalf("account %d: password does not match", id)
		}
	}
}

func TestMintToken(t *testing.T) {
	store := dbtest.New()
	store.AddUser(model.User{ID: 2, Email: "secretary@portal.local", Role: model.RoleSecretary, Active: true})
	store.AddUser(model.User{ID: 9, Email: "former@portal.local", Role: model.RoleStaff, Active: false})
	ctx := context.Background()

	token, err := mintToken(ctx, store, 2, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := auth.ParseToken(cfg.JWTSecret, cfg.JWTIssuer, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id, _ := claims.UserID(); id != 2 {
		t.Fatalf("expected subject 2, got %d", id)
	}

	if _, err := mintToken(ctx, store, 9, time.Minute); err == nil {
		t.Fatalf("inactive user must not get a token")
	}
	if _, err := mintToken(ctx, store, 404, time.Minute); err == nil {
		t.Fatalf("unknown user must not get a token")
	}
}

func TestRootCommandListsSubcommands(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--help"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"migrate", "seed", "token"} {
		if !bytes.Contains(out.Bytes(), []byte(name)) {
			t.Fatalf("help output missing %s", name)
		}
	}
}
