package repositories

import (
	"context"

	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MeetingRepository defines persistence for safe zone meetings.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *models.SafeZoneMeeting) error
	GetMeetingByID(ctx context.Context, id uint) (*models.SafeZoneMeeting, error)
	ListMeetingsForUser(ctx context.Context, userID uint) ([]models.SafeZoneMeeting, error)
	// LatestOpenForConversation returns the most recent proposed or confirmed meeting.
	LatestOpenForConversation(ctx context.Context, conversationID uint) (*models.SafeZoneMeeting, error)
	// UpdateMeeting loads the meeting under a row lock, applies fn and saves the result.
	// If fn returns an error nothing is written.
	UpdateMeeting(ctx context.Context, id uint, fn func(m *models.SafeZoneMeeting) error) (*models.SafeZoneMeeting, error)
}

type postgresMeetingRepository struct {
	db *gorm.DB
}

func NewPostgresMeetingRepository(db *gorm.DB) MeetingRepository {
	return &postgresMeetingRepository{db: db}
}

func (r *postgresMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.SafeZoneMeeting) error {
	return r.db.WithContext(ctx).Omit("SafeZone").Create(meeting).Error
}

func (r *postgresMeetingRepository) GetMeetingByID(ctx context.Context, id uint) (*models.SafeZoneMeeting, error) {
	var m models.SafeZoneMeeting
	if err := r.db.WithContext(ctx).Preload("SafeZone").First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMeetingRepository) ListMeetingsForUser(ctx context.Context, userID uint) ([]models.SafeZoneMeeting, error) {
	var meetings []models.SafeZoneMeeting
	err := r.db.WithContext(ctx).Preload("SafeZone").
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("scheduled_at DESC").
		Find(&meetings).Error
	return meetings, err
}

func (r *postgresMeetingRepository) LatestOpenForConversation(ctx context.Context, conversationID uint) (*models.SafeZoneMeeting, error) {
	var m models.SafeZoneMeeting
	err := r.db.WithContext(ctx).Preload("SafeZone").
		Where("conversation_id = ? AND status IN ?", conversationID,
			[]string{models.MeetingStatusProposed, models.MeetingStatusConfirmed}).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMeetingRepository) UpdateMeeting(ctx context.Context, id uint, fn func(m *models.SafeZoneMeeting) error) (*models.SafeZoneMeeting, error) {
	var m models.SafeZoneMeeting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			return err
		}
		if err := fn(&m); err != nil {
			return err
		}
		return tx.Omit("SafeZone").Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetMeetingByID(ctx, id)
}
