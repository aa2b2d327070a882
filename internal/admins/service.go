package admins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/teranga-eats/teranga-backend/pkg/auth"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db/models"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
	"github.com/teranga-eats/teranga-backend/pkg/security"
)

// LoginInput is the admin console credential submission.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the minted token and the authenticated account.
type LoginResult struct {
	Token string            `json:"token"`
	Admin *models.AdminUser `json:"admin"`
}

// Service authenticates staff accounts.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
}

type service struct {
	repo Repository
	jwt  config.JWTConfig
	logg *logger.Logger
}

// NewService builds an admin auth service.
func NewService(repo Repository, jwt config.JWTConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admins repository required")
	}
	return &service{repo: repo, jwt: jwt, logg: logg}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Same answer as a bad password; do not leak which accounts exist.
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin account")
	}
	if !admin.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	match, err := security.VerifyPassword(input.Password, admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := auth.MintAccessToken(s.jwt, time.Now().UTC(), auth.AccessTokenPayload{
		AdminID: admin.ID,
		Email:   admin.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "admin_id", admin.ID.String()), "admin login")
	}
	return &LoginResult{Token: token, Admin: admin}, nil
}
