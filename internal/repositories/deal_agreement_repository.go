package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DealAgreementRepository persists the two-party deal confirmation.
type DealAgreementRepository interface {
	GetByConversation(ctx context.Context, conversationID uint) (*models.DealAgreement, error)
	// Apply creates the agreement for conv if it does not exist, locks its row, runs fn
	// and saves the result in one transaction. If fn returns an error nothing is written.
	Apply(ctx context.Context, conv *models.Conversation, fn func(d *models.DealAgreement) error) (*models.DealAgreement, error)
}

type postgresDealAgreementRepository struct {
	db *gorm.DB
}

func NewPostgresDealAgreementRepository(db *gorm.DB) DealAgreementRepository {
	return &postgresDealAgreementRepository{db: db}
}

func (r *postgresDealAgreementRepository) GetByConversation(ctx context.Context, conversationID uint) (*models.DealAgreement, error) {
	var d models.DealAgreement
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *postgresDealAgreementRepository) Apply(ctx context.Context, conv *models.Conversation, fn func(d *models.DealAgreement) error) (*models.DealAgreement, error) {
	var d models.DealAgreement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := &models.DealAgreement{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			ListingID:      conv.ListingID,
			BuyerID:        conv.BuyerID,
			SellerID:       conv.SellerID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoNothing: true,
		}).Create(seed).Error
		if err != nil {
			return err
		}

		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", conv.ID).
			First(&d).Error
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		return tx.Save(&d).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}
