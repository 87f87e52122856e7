package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository stores identity verification submissions.
type VerificationRepository interface {
	CreateVerification(ctx context.Context, v *models.IdentityVerification) error
	LatestForUser(ctx context.Context, userID uint) (*models.IdentityVerification, error)
	HasPending(ctx context.Context, userID uint) (bool, error)
	// Review records the decision on a pending submission and updates the user's
	// identity_verified flag in the same transaction.
	Review(ctx context.Context, id string, reviewerID uint, decision, reason string) (*models.IdentityVerification, error)
}

type postgresVerificationRepository struct {
	db *gorm.DB
}

func NewPostgresVerificationRepository(db *gorm.DB) VerificationRepository {
	return &postgresVerificationRepository{db: db}
}

func (r *postgresVerificationRepository) CreateVerification(ctx context.Context, v *models.IdentityVerification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Status = models.VerificationPending
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *postgresVerificationRepository) LatestForUser(ctx context.Context, userID uint) (*models.IdentityVerification, error) {
	var v models.IdentityVerification
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *postgresVerificationRepository) HasPending(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.IdentityVerification{}).
		Where("user_id = ? AND status = ?", userID, models.VerificationPending).
		Count(&n).Error
	return n > 0, err
}

func (r *postgresVerificationRepository) Review(ctx context.Context, id string, reviewerID uint, decision, reason string) (*models.IdentityVerification, error) {
	var v models.IdentityVerification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, "id = ?", id).Error; err != nil {
			return err
		}
		if v.Status != models.VerificationPending {
			return ErrAlreadyReviewed
		}
		now := time.Now()
		v.Status = decision
		v.Reason = reason
		v.ReviewerID = &reviewerID
		v.ReviewedAt = &now
		if err := tx.Save(&v).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", v.UserID).
			Update("identity_verified", decision == models.VerificationApproved).Error
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
