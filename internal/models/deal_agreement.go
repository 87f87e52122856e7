package models

import (
	"errors"
	"time"
)

var ErrAgreementLocked = errors.New("both parties have agreed; the deal can no longer be changed")

// DealAgreement is the two-party confirmation that gates revealing the meeting location.
type DealAgreement struct {
	ID               string     `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID   uint       `json:"conversation_id" gorm:"uniqueIndex"`
	ListingID        uint       `json:"listing_id" gorm:"index"`
	BuyerID          uint       `json:"buyer_id" gorm:"index"`
	SellerID         uint       `json:"seller_id" gorm:"index"`
	AgreedPriceCents *int64     `json:"agreed_price_cents,omitempty"`
	BuyerAgreed      bool       `json:"buyer_agreed"`
	SellerAgreed     bool       `json:"seller_agreed"`
	AgreedAt         *time.Time `json:"agreed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (d *DealAgreement) Complete() bool {
	return d.BuyerAgreed && d.SellerAgreed
}

// Set applies role's agree/withdraw decision. A new price clears both flags before the
// decision is applied. It returns true when this call completed the agreement.
func (d *DealAgreement) Set(role string, agree bool, priceCents *int64, now time.Time) (bool, error) {
	if d.Complete() {
		return false, ErrAgreementLocked
	}
	if priceCents != nil && (d.AgreedPriceCents == nil || *d.AgreedPriceCents != *priceCents) {
		p := *priceCents
		d.AgreedPriceCents = &p
		d.BuyerAgreed, d.SellerAgreed = false, false
	}
	switch role {
	case RoleBuyer:
		d.BuyerAgreed = agree
	case RoleSeller:
		d.SellerAgreed = agree
	}
	if d.Complete() {
		d.AgreedAt = &now
		return true, nil
	}
	return false, nil
}

type DealAgreementRequest struct {
	ConversationID   uint   `json:"conversation_id" validate:"required"`
	Agree            *bool  `json:"agree,omitempty"`
	AgreedPriceCents *int64 `json:"agreed_price_cents,omitempty" validate:"omitempty,gt=0"`
}

// DealAgreementResponse reveals Meeting (with exact location) only when LocationRevealed.
type DealAgreementResponse struct {
	Agreement        *DealAgreement   `json:"agreement"`
	LocationRevealed bool             `json:"location_revealed"`
	Meeting          *SafeZoneMeeting `json:"meeting,omitempty"`
}
