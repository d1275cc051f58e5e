package domain

import (
	"strings"
	"time"
)

type User struct {
	UserID        string    `json:"_id" dynamodbav:"user_id"`
	Email         string    `json:"email" dynamodbav:"email"`
	Name          string    `json:"name" dynamodbav:"name"`
	PasswordHash  string    `json:"-" dynamodbav:"password_hash"`
	EmailVerified bool      `json:"isVerified" dynamodbav:"email_verified"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// NormalizeEmail lower-cases and trims an address; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}
