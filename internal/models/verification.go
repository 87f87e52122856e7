package models

import "time"

const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// IdentityVerification is a user's submission of identity documents for review.
type IdentityVerification struct {
	ID               string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uint       `json:"user_id" gorm:"index"`
	DocumentType     string     `json:"document_type" gorm:"size:30"`
	DocumentFrontURL string     `json:"document_front_url"`
	DocumentBackURL  string     `json:"document_back_url,omitempty"`
	SelfieURL        string     `json:"selfie_url"`
	Status           string     `json:"status" gorm:"size:20;default:pending;index"`
	ReviewerID       *uint      `json:"reviewer_id,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type SubmitIdentityRequest struct {
	DocumentType     string `json:"document_type" validate:"required,oneof=drivers_license passport state_id"`
	DocumentFrontURL string `json:"document_front_url" validate:"required,url"`
	DocumentBackURL  string `json:"document_back_url,omitempty" validate:"omitempty,url"`
	SelfieURL        string `json:"selfie_url" validate:"required,url"`
}

type ReviewIdentityRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason,omitempty" validate:"max=500"`
}

type IdentityStatusResponse struct {
	IdentityVerified bool                  `json:"identity_verified"`
	Latest           *IdentityVerification `json:"latest"`
}

// Phone verification actions.
const (
	PhoneActionSend   = "send"
	PhoneActionVerify = "verify"
)

type VerifyPhoneRequest struct {
	Action string `json:"action" validate:"required,oneof=send verify"`
	Phone  string `json:"phone" validate:"required,e164"`
	Code   string `json:"code,omitempty" validate:"omitempty,len=6,numeric"`
}
