package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/users"
	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/security"
)

// SeedAdmin creates the admin account or, when the email already exists,
// promotes it and resets its password. The returned flag is true on create.
func SeedAdmin(ctx context.Context, repo *users.Repository, seed config.AdminSeedConfig, passwordCfg config.PasswordConfig) (*users.UserDTO, bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	username := strings.TrimSpace(seed.Username)
	if email == "" || username == "" || seed.Password == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "admin username, email and password are required")
	}
	hash, err := security.HashPassword(seed.Password, passwordCfg)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	existing, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		existing.Role = enums.UserRoleAdmin
		existing.PasswordHash = hash
		existing.IsVerified = true
		if err := repo.SaveFields(ctx, existing, "role", "password_hash", "is_verified"); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update admin")
		}
		return users.FromModel(existing), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin")
	}

	created, err := repo.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         enums.UserRoleAdmin,
		IsVerified:   true,
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
	}
	return users.FromModel(created), true, nil
}
