package admins

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/auth"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/security"
)

type stubAdminsRepo struct {
	admin *models.AdminUser
}

func (s *stubAdminsRepo) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if s.admin == nil || s.admin.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.admin, nil
}

func (s *stubAdminsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	if s.admin == nil || s.admin.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.admin, nil
}

func (s *stubAdminsRepo) Create(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error) {
	s.admin = admin
	return admin, nil
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "teranga-tests", ExpirationMinutes: 60}
}

func activeAdmin(t *testing.T, password string) *models.AdminUser {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.AdminUser{
		ID:           uuid.New(),
		Email:        "staff@teranga.sn",
		PasswordHash: hash,
		Active:       true,
	}
}

func TestLoginSuccess(t *testing.T) {
	admin := activeAdmin(t, "s3cret-pass")
	svc, err := NewService(&stubAdminsRepo{admin: admin}, testJWT(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginInput{Email: "Staff@Teranga.sn", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected a token")
	}

	claims, err := auth.ParseAccessToken(testJWT(), result.Token)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.AdminID != admin.ID || claims.Email != admin.Email {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	admin := activeAdmin(t, "s3cret-pass")
	svc, _ := NewService(&stubAdminsRepo{admin: admin}, testJWT(), nil)
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginInput{Email: "staff@teranga.sn", Password: "wrong"}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@teranga.sn", Password: "s3cret-pass"}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	admin := activeAdmin(t, "s3cret-pass")
	admin.Active = false
	svc, _ := NewService(&stubAdminsRepo{admin: admin}, testJWT(), nil)

	if _, err := svc.Login(context.Background(), LoginInput{Email: "staff@teranga.sn", Password: "s3cret-pass"}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive account, got %v", err)
	}
}
