package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

// User is an admin or seller account. Buyers never hold an account.
type User struct {
	ID                 uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Username           string         `gorm:"column:username;not null;uniqueIndex"`
	Email              string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash       string         `gorm:"column:password_hash;not null"`
	Role               enums.UserRole `gorm:"column:role;type:text;not null"`
	BankName           *string        `gorm:"column:bank_name"`
	BankAccountNumber  *string        `gorm:"column:bank_account_number"`
	BankAccountName    *string        `gorm:"column:bank_account_name"`
	IsVerified         bool           `gorm:"column:is_verified;not null;default:false"`
	VerificationToken  *string        `gorm:"column:verification_token;index"`
	VerificationExpiry *time.Time     `gorm:"column:verification_expires_at"`
	ResendCount        int            `gorm:"column:verification_resend_count;not null;default:0"`
	ResendWindowStart  *time.Time     `gorm:"column:verification_resend_window_start"`
	LastLoginAt        *time.Time     `gorm:"column:last_login_at"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBankDetails reports whether the seller can receive a payout.
func (u User) HasBankDetails() bool {
	return u.BankName != nil && *u.BankName != "" &&
		u.BankAccountNumber != nil && *u.BankAccountNumber != "" &&
		u.BankAccountName != nil && *u.BankAccountName != ""
}
