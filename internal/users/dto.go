package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

// UserDTO is the transport shape that omits credentials and tokens.
type UserDTO struct {
	ID                uuid.UUID      `json:"id"`
	Username          string         `json:"username"`
	Email             string         `json:"email"`
	Role              enums.UserRole `json:"role"`
	IsVerified        bool           `json:"is_verified"`
	BankName          *string        `json:"bank_name,omitempty"`
	BankAccountNumber *string        `json:"bank_account_number,omitempty"`
	BankAccountName   *string        `json:"bank_account_name,omitempty"`
	LastLoginAt       *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username           string
	Email              string
	PasswordHash       string
	Role               enums.UserRole
	IsVerified         bool
	VerificationToken  *string
	VerificationExpiry *time.Time
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              u.Role,
		IsVerified:        u.IsVerified,
		BankName:          u.BankName,
		BankAccountNumber: u.BankAccountNumber,
		BankAccountName:   u.BankAccountName,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:           c.Username,
		Email:              c.Email,
		PasswordHash:       c.PasswordHash,
		Role:               c.Role,
		IsVerified:         c.IsVerified,
		VerificationToken:  c.VerificationToken,
		VerificationExpiry: c.VerificationExpiry,
	}
}
