package dto

import "github.com/noah-isme/gema-lms-gateway/internal/models"

// LoginRequest validates login payloads.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest validates self-registration payloads.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=student instructor"`
}

// ProfileUpdateRequest validates profile edits.
type ProfileUpdateRequest struct {
	Name   string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Bio    string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// PasswordChangeRequest validates password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,nefield=CurrentPassword"`
}

// SessionResponse is returned after login, register and restore.
type SessionResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt string      `json:"expires_at,omitempty"`
	Roles     RoleFlags   `json:"roles"`
}

// RoleFlags exposes the session's role predicates.
type RoleFlags struct {
	Admin      bool `json:"admin"`
	Instructor bool `json:"instructor"`
	Student    bool `json:"student"`
}
