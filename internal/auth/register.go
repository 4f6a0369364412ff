package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

const (
	verificationTokenBytes = 32
	minPasswordLength      = 8
	resendWindow           = 24 * time.Hour
)

// Register creates an unverified seller and mails the verification link.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case username == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	case len(req.Password) < minPasswordLength:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}

	exists, err := s.users.Exists(ctx, email, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing user")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email or username already registered")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	token, err := security.NewToken(verificationTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification token")
	}
	expiry := s.now().UTC().Add(s.verification.TokenTTL)

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		Role:               enums.UserRoleSeller,
		VerificationToken:  &token,
		VerificationExpiry: &expiry,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email or username already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	s.notifier.SendVerification(ctx, user.Email, user.Username, token)
	logCtx := s.logg.WithFields(ctx, map[string]any{"event": "auth.registered", "user_id": user.ID.String()})
	s.logg.Info(logCtx, "seller registered")
	return users.FromModel(user), nil
}

func (s *service) Verify(ctx context.Context, token string) (*users.UserDTO, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification token is required")
	}
	user, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid verification token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup verification token")
	}
	if user.VerificationExpiry == nil || s.now().After(*user.VerificationExpiry) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification token expired")
	}

	user.IsVerified = true
	user.VerificationToken = nil
	user.VerificationExpiry = nil
	if err := s.users.SaveFields(ctx, user, "is_verified", "verification_token", "verification_expires_at"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark verified")
	}
	return users.FromModel(user), nil
}

// ResendVerification issues a fresh token. Each user gets a bounded number of
// resends inside a rolling window that starts at the first resend.
func (s *service) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if user.IsVerified {
		return pkgerrors.New(pkgerrors.CodeValidation, "account already verified")
	}

	now := s.now().UTC()
	if !withinResendWindow(user, now) {
		user.ResendCount = 0
		user.ResendWindowStart = &now
	}
	if user.ResendCount >= s.verification.MaxResendPerDay {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "verification resend limit reached, try again tomorrow").
			WithDetails(map[string]any{"retry_after": user.ResendWindowStart.Add(resendWindow).Format(time.RFC3339)})
	}

	token, err := security.NewToken(verificationTokenBytes)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification token")
	}
	expiry := now.Add(s.verification.TokenTTL)
	user.ResendCount++
	user.VerificationToken = &token
	user.VerificationExpiry = &expiry
	if err := s.users.SaveFields(ctx, user,
		"verification_token", "verification_expires_at",
		"verification_resend_count", "verification_resend_window_start",
	); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store verification token")
	}

	s.notifier.SendVerification(ctx, user.Email, user.Username, token)
	return nil
}

func withinResendWindow(user *models.User, now time.Time) bool {
	return user.ResendWindowStart != nil && now.Sub(*user.ResendWindowStart) < resendWindow
}
