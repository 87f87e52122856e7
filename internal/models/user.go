package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Name             string         `json:"name"`
	Email            string         `json:"email" gorm:"uniqueIndex"`
	Password         string         `json:"-"`
	FirebaseUID      *string        `json:"-" gorm:"uniqueIndex"`
	Role             string         `json:"role" gorm:"size:20;default:user"`
	Phone            string         `json:"phone,omitempty" gorm:"size:20"`
	PhoneVerified    bool           `json:"phone_verified"`
	IdentityVerified bool           `json:"identity_verified"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserCompact is the public view of a user shown next to listings and messages.
type UserCompact struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	PhoneVerified    bool   `json:"phone_verified"`
	IdentityVerified bool   `json:"identity_verified"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:               u.ID,
		Name:             u.Name,
		PhoneVerified:    u.PhoneVerified,
		IdentityVerified: u.IdentityVerified,
	}
}

// PublicProfile is what GET /users/:id returns.
type PublicProfile struct {
	UserCompact
	MemberSince    time.Time `json:"member_since"`
	ActiveListings int64     `json:"active_listings"`
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type UpdateUserRequest struct {
	Name  string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Phone string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
