package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seglab/segcase-backend/internal/pkg/ctxutil"
	"github.com/seglab/segcase-backend/internal/repos"
	"github.com/seglab/segcase-backend/internal/types"
)

func newTestAuth(t *testing.T) AuthService {
	t.Helper()
	log := testLogger(t)
	db := newTestDB(t)
	if err := db.AutoMigrate(&types.UserToken{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewAuthService(db, log,
		repos.NewUserRepo(db, log),
		repos.NewUserTokenRepo(db, log),
		"test-secret", time.Hour, 24*time.Hour)
}

func testUser() *types.User {
	return &types.User{
		Name:     "Dr. Test",
		Email:    fmt.Sprintf("%s@example.org", uuid.New()),
		Password: "hunter22",
		Hospital: "General",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newTestAuth(t)
	u := testUser()
	email := u.Email

	access, refresh, err := auth.Register(context.Background(), u)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatalf("Register: empty tokens")
	}
	if u.Password == "hunter22" {
		t.Fatalf("Register must not keep the plaintext password")
	}

	// The same email cannot register twice.
	dup := testUser()
	dup.Email = email
	if _, _, err := auth.Register(context.Background(), dup); err == nil {
		t.Fatalf("Register (duplicate): expected error")
	}

	if _, _, _, err := auth.Login(context.Background(), email, "wrong"); err == nil {
		t.Fatalf("Login (wrong password): expected error")
	}
	logged, access2, _, err := auth.Login(context.Background(), email, "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != u.ID || access2 == "" {
		t.Fatalf("Login: user=%s token=%q", logged.ID, access2)
	}
}

func TestTokenRoundTripAndLogout(t *testing.T) {
	auth := newTestAuth(t)
	u := testUser()

	access, _, err := auth.Register(context.Background(), u)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, err := auth.SetContextFromToken(context.Background(), access)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID != u.ID {
		t.Fatalf("context identity: got %+v", rd)
	}

	if err := auth.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// The JWT is still well formed, but its session row is gone.
	if _, err := auth.SetContextFromToken(context.Background(), access); err == nil {
		t.Fatalf("token must be rejected after logout")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	auth := newTestAuth(t)
	u := testUser()

	access, refresh, err := auth.Register(context.Background(), u)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, err := auth.SetContextFromToken(context.Background(), access)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	newAccess, newRefresh, err := auth.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if newRefresh == refresh {
		t.Fatalf("refresh token must rotate")
	}
	if _, err := auth.SetContextFromToken(context.Background(), newAccess); err != nil {
		t.Fatalf("new access token must be valid: %v", err)
	}
	// The old session row was replaced, so the old access token is dead.
	if _, err := auth.SetContextFromToken(context.Background(), access); err == nil {
		t.Fatalf("old access token must be rejected after refresh")
	}
}

func TestRejectsForeignSignature(t *testing.T) {
	auth := newTestAuth(t)
	other := newTestAuthWithSecret(t, "another-secret")

	u := testUser()
	access, _, err := other.Register(context.Background(), u)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.SetContextFromToken(context.Background(), access); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
}

func newTestAuthWithSecret(t *testing.T, secret string) AuthService {
	t.Helper()
	log := testLogger(t)
	db := newTestDB(t)
	if err := db.AutoMigrate(&types.UserToken{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewAuthService(db, log,
		repos.NewUserRepo(db, log),
		repos.NewUserTokenRepo(db, log),
		secret, time.Hour, 24*time.Hour)
}
