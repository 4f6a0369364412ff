package auth

import (
	"github.com/muhamadhazim/fishit-marketplace/internal/users"
)

// LoginRequest accepts either the email or the username in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token and the signed-in user.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	User        *users.UserDTO `json:"user"`
}

// RegisterRequest is the seller sign-up payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateProfileRequest only touches the fields that are present.
type UpdateProfileRequest struct {
	Username          *string `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
	BankName          *string `json:"bank_name,omitempty" validate:"omitempty,max=64"`
	BankAccountNumber *string `json:"bank_account_number,omitempty" validate:"omitempty,max=32"`
	BankAccountName   *string `json:"bank_account_name,omitempty" validate:"omitempty,max=128"`
}
