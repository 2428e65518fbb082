package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	Username     *string    `json:"username,omitempty"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin checks if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserActivity summarizes one user's stored data for the admin view
type UserActivity struct {
	UserID              int `json:"user_id"`
	EstimateCount       int `json:"estimate_count"`
	ContractorEstimates int `json:"contractor_estimates"`
	CarrierEstimates    int `json:"carrier_estimates"`
	ReportCount         int `json:"report_count"`
}

// PlatformStats holds platform-wide row counts
type PlatformStats struct {
	TotalUsers     int `json:"total_users"`
	TotalEstimates int `json:"total_estimates"`
	TotalLineItems int `json:"total_line_items"`
	TotalReports   int `json:"total_reports"`
}

// RegisterRequest is the request body for user registration
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username,omitempty"`
}

// LoginRequest is the request body for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after successful login/register
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
