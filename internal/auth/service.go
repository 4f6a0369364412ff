package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	pkgAuth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service covers seller onboarding, sign-in and the caller's own profile.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Verify(ctx context.Context, token string) (*users.UserDTO, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*users.UserDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByLogin(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Exists(ctx context.Context, email, username string) (bool, error)
	UsernameTakenByOther(ctx context.Context, id uuid.UUID, username string) (bool, error)
	SaveFields(ctx context.Context, user *models.User, columns ...string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type verificationSender interface {
	SendVerification(ctx context.Context, to, username, token string)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	Notifier       verificationSender
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Verification   config.VerificationConfig
	Logger         *logger.Logger
}

type service struct {
	users        userRepository
	notifier     verificationSender
	jwtCfg       config.JWTConfig
	passwordCfg  config.PasswordConfig
	verification config.VerificationConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("verification notifier is required")
	}
	verification := params.Verification
	if verification.TokenTTL <= 0 {
		verification.TokenTTL = 24 * time.Hour
	}
	if verification.MaxResendPerDay <= 0 {
		verification.MaxResendPerDay = 5
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		users:        params.UserRepo,
		notifier:     params.Notifier,
		jwtCfg:       params.JWTConfig,
		passwordCfg:  params.PasswordConfig,
		verification: verification,
		logg:         logg,
		now:          time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	identifier := strings.TrimSpace(req.Login)
	if identifier == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !user.Role.CanSignIn() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account cannot sign in")
	}
	if user.Role == enums.UserRoleSeller && !user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "email address not verified")
	}

	now := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	logCtx := s.logg.WithFields(ctx, map[string]any{"event": "auth.login", "user_id": user.ID.String(), "role": string(user.Role)})
	s.logg.Info(logCtx, "user signed in")

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwtCfg.ExpirationMinutes * 60,
		User:        users.FromModel(user),
	}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*users.UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var columns []string
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "username cannot be empty")
		}
		if !strings.EqualFold(username, user.Username) {
			taken, err := s.users.UsernameTakenByOther(ctx, user.ID, username)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
			}
			if taken {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
			}
		}
		user.Username = username
		columns = append(columns, "username")
	}
	if req.BankName != nil {
		user.BankName = optionalTrimmed(*req.BankName)
		columns = append(columns, "bank_name")
	}
	if req.BankAccountNumber != nil {
		user.BankAccountNumber = optionalTrimmed(*req.BankAccountNumber)
		columns = append(columns, "bank_account_number")
	}
	if req.BankAccountName != nil {
		user.BankAccountName = optionalTrimmed(*req.BankAccountName)
		columns = append(columns, "bank_account_name")
	}
	if len(columns) == 0 {
		return users.FromModel(user), nil
	}

	if err := s.users.SaveFields(ctx, user, columns...); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	return users.FromModel(user), nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func optionalTrimmed(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
