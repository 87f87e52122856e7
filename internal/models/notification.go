package models

import "time"

// Notification types.
const (
	NotificationMessage          = "message"
	NotificationMeetingProposed  = "meeting_proposed"
	NotificationMeetingConfirmed = "meeting_confirmed"
	NotificationMeetingCancelled = "meeting_cancelled"
	NotificationDealAgreed       = "deal_agreed"
	NotificationIdentityReviewed = "identity_reviewed"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"`
	ActorID     uint      `json:"actor_id" gorm:"index"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	TargetID    string    `json:"target_id"`                  // conversation, meeting or verification id
	TargetType  string    `json:"target_type" gorm:"size:20"` // conversation, meeting, deal, verification
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
