package models

import (
	"errors"
	"time"
)

const (
	MeetingStatusProposed  = "proposed"
	MeetingStatusConfirmed = "confirmed"
	MeetingStatusCancelled = "cancelled"
	MeetingStatusCompleted = "completed"
)

var (
	ErrMeetingClosed       = errors.New("meeting is no longer open")
	ErrMeetingNotConfirmed = errors.New("meeting has not been confirmed by both parties")
)

// SafeZoneMeeting is a proposed meetup at a safe zone. It is confirmed only when both
// the buyer and the seller have confirmed it.
type SafeZoneMeeting struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	ConversationID  uint       `json:"conversation_id" gorm:"index"`
	ListingID       uint       `json:"listing_id" gorm:"index"`
	BuyerID         uint       `json:"buyer_id" gorm:"index"`
	SellerID        uint       `json:"seller_id" gorm:"index"`
	SafeZoneID      uint       `json:"safe_zone_id,omitempty" gorm:"index"`
	SafeZone        *SafeZone  `json:"safe_zone,omitempty" gorm:"foreignKey:SafeZoneID"`
	ProposedBy      uint       `json:"proposed_by"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	Notes           string     `json:"notes,omitempty"`
	BuyerConfirmed  bool       `json:"buyer_confirmed"`
	SellerConfirmed bool       `json:"seller_confirmed"`
	Status          string     `json:"status" gorm:"size:20;default:proposed;index"`
	CancelledBy     *uint      `json:"cancelled_by,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (m *SafeZoneMeeting) IsParticipant(userID uint) bool {
	return userID == m.BuyerID || userID == m.SellerID
}

func (m *SafeZoneMeeting) open() bool {
	return m.Status == MeetingStatusProposed || m.Status == MeetingStatusConfirmed
}

// Confirm records userID's confirmation and promotes the meeting once both sides agree.
func (m *SafeZoneMeeting) Confirm(userID uint, now time.Time) error {
	if !m.open() {
		return ErrMeetingClosed
	}
	switch userID {
	case m.BuyerID:
		m.BuyerConfirmed = true
	case m.SellerID:
		m.SellerConfirmed = true
	}
	if m.BuyerConfirmed && m.SellerConfirmed && m.Status == MeetingStatusProposed {
		m.Status = MeetingStatusConfirmed
		m.ConfirmedAt = &now
	}
	return nil
}

func (m *SafeZoneMeeting) Cancel(userID uint) error {
	if !m.open() {
		return ErrMeetingClosed
	}
	m.Status = MeetingStatusCancelled
	m.CancelledBy = &userID
	return nil
}

func (m *SafeZoneMeeting) Complete(now time.Time) error {
	if m.Status != MeetingStatusConfirmed {
		return ErrMeetingNotConfirmed
	}
	m.Status = MeetingStatusCompleted
	m.CompletedAt = &now
	return nil
}

type ProposeMeetingRequest struct {
	ConversationID uint      `json:"conversation_id" validate:"required"`
	SafeZoneID     uint      `json:"safe_zone_id" validate:"required"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	Notes          string    `json:"notes,omitempty" validate:"max=500"`
}
