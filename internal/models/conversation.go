package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the single thread between a buyer and the seller of a listing.
type Conversation struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	ListingID     uint       `json:"listing_id" gorm:"uniqueIndex:idx_listing_buyer_seller"`
	BuyerID       uint       `json:"buyer_id" gorm:"index;uniqueIndex:idx_listing_buyer_seller"`
	SellerID      uint       `json:"seller_id" gorm:"index;uniqueIndex:idx_listing_buyer_seller"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Participant roles in a conversation.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// RoleOf returns "buyer", "seller" or "" when userID is not a participant.
func (c *Conversation) RoleOf(userID uint) string {
	switch userID {
	case c.BuyerID:
		return RoleBuyer
	case c.SellerID:
		return RoleSeller
	}
	return ""
}

func (c *Conversation) IsParticipant(userID uint) bool {
	return c.RoleOf(userID) != ""
}

// OtherParty returns the participant that is not userID.
func (c *Conversation) OtherParty(userID uint) uint {
	if userID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}

// Message is stored in MongoDB; conversations can grow long and are read as pages.
type Message struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ConversationID uint               `json:"conversation_id" bson:"conversation_id"`
	SenderID       uint               `json:"sender_id" bson:"sender_id"`
	Body           string             `json:"body" bson:"body"`
	ReadAt         *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// ConversationSummary is a row of the caller's inbox.
type ConversationSummary struct {
	Conversation
	ListingTitle string      `json:"listing_title"`
	Counterpart  UserCompact `json:"counterpart"`
	UnreadCount  int64       `json:"unread_count"`
}

type StartConversationRequest struct {
	ListingID uint   `json:"listing_id" validate:"required"`
	Message   string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

type SendMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=2000"`
}
