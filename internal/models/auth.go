package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=student admin coordinator"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token and user info. Token is empty when a
// pending registration is held back.
type AuthResponse struct {
	Token   string   `json:"token,omitempty"`
	User    UserInfo `json:"user"`
	Message string   `json:"message,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       UserRole   `json:"role"`
	RoleStatus RoleStatus `json:"roleStatus"`
	Points     int        `json:"points"`
}

// NewUserInfo projects a user onto the public auth payload.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, RoleStatus: u.RoleStatus, Points: u.Points}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string     `json:"id"`
	Role       UserRole   `json:"role"`
	RoleStatus RoleStatus `json:"roleStatus"`
	Email      string     `json:"email"`
	jwt.RegisteredClaims
}
