package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the display identity of an external user (PostgreSQL).
// Credentials live with the identity provider, never here.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:128"`
	Username  string    `json:"username" gorm:"size:64;index"`
	Name      string    `json:"name" gorm:"size:128"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCompact is the minimal author identity embedded in responses
type UserCompact struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ToCompact returns the compact form of the user
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, Name: u.Name, AvatarURL: u.AvatarURL}
}

// UnknownAuthor is the fallback identity for ids the directory cannot resolve
func UnknownAuthor(id string) UserCompact {
	return UserCompact{ID: id, Username: id}
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims.
// Tokens may carry the user id as user_id or id; sub is used as a last resort.
type JwtCustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	ID     string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the authenticated user id carried by the claims
func (c *JwtCustomClaims) Identity() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.ID != "":
		return c.ID
	default:
		return c.Subject
	}
}

// UpdateProfileRequest defines the request body for updating the caller's display identity
type UpdateProfileRequest struct {
	Username  string `json:"username" validate:"required,min=2,max=64"`
	Name      string `json:"name,omitempty" validate:"omitempty,max=128"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}
