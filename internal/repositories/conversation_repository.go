package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
)

// ConversationRepository defines buyer/seller thread persistence.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for (listing, buyer, seller), creating it if
	// needed. created reports whether this call inserted the row.
	FindOrCreate(ctx context.Context, listingID, buyerID, sellerID uint) (conv *models.Conversation, created bool, err error)
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	TouchLastMessage(ctx context.Context, id uint, at time.Time) error
}

type postgresConversationRepository struct {
	db *gorm.DB
}

func NewPostgresConversationRepository(db *gorm.DB) ConversationRepository {
	return &postgresConversationRepository{db: db}
}

func (r *postgresConversationRepository) FindOrCreate(ctx context.Context, listingID, buyerID, sellerID uint) (*models.Conversation, bool, error) {
	find := func() (*models.Conversation, error) {
		var conv models.Conversation
		err := r.db.WithContext(ctx).
			Where("listing_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, sellerID).
			First(&conv).Error
		if err != nil {
			return nil, err
		}
		return &conv, nil
	}

	conv, err := find()
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = &models.Conversation{ListingID: listingID, BuyerID: buyerID, SellerID: sellerID}
	err = r.db.WithContext(ctx).Create(conv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent request for the same thread.
		existing, ferr := find()
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

func (r *postgresConversationRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *postgresConversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&convs).Error
	return convs, err
}

func (r *postgresConversationRepository) TouchLastMessage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).
		Update("last_message_at", at).Error
}
