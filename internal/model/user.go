package model

import "time"

// UserRole separates candidates from catalog administrators.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User is an account on the platform.
type User struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	TargetLevel  *ExamLevel `json:"target_level,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RegisterRequest is the payload for creating a student account.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	TargetLevel string `json:"target_level" binding:"omitempty,oneof=B1 B2 C1"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
