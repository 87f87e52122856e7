package repositories

import (
	"context"

	"github.com/safetrade/marketplace/backend/internal/geo"
	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SafeZoneRepository defines the interface for safe zone data operations
type SafeZoneRepository interface {
	ListSafeZones(ctx context.Context, city, kind string) ([]models.SafeZone, error)
	GetSafeZoneByID(ctx context.Context, id uint) (*models.SafeZone, error)
	// WithinBox returns active zones inside the rectangle; exact distance filtering is
	// left to the caller.
	WithinBox(ctx context.Context, lo, hi geo.Point) ([]models.SafeZone, error)
	CreateSafeZone(ctx context.Context, zone *models.SafeZone) error
	// UpsertSafeZones inserts or refreshes zones keyed by (name, city).
	UpsertSafeZones(ctx context.Context, zones []models.SafeZone) error
}

type postgresSafeZoneRepository struct {
	db *gorm.DB
}

func NewPostgresSafeZoneRepository(db *gorm.DB) SafeZoneRepository {
	return &postgresSafeZoneRepository{db: db}
}

func (r *postgresSafeZoneRepository) ListSafeZones(ctx context.Context, city, kind string) ([]models.SafeZone, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var zones []models.SafeZone
	err := q.Order("city ASC, name ASC").Find(&zones).Error
	return zones, err
}

func (r *postgresSafeZoneRepository) GetSafeZoneByID(ctx context.Context, id uint) (*models.SafeZone, error) {
	var zone models.SafeZone
	if err := r.db.WithContext(ctx).First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *postgresSafeZoneRepository) WithinBox(ctx context.Context, lo, hi geo.Point) ([]models.SafeZone, error) {
	var zones []models.SafeZone
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("latitude BETWEEN ? AND ?", lo.Lat, hi.Lat).
		Where("longitude BETWEEN ? AND ?", lo.Lng, hi.Lng).
		Find(&zones).Error
	return zones, err
}

func (r *postgresSafeZoneRepository) CreateSafeZone(ctx context.Context, zone *models.SafeZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *postgresSafeZoneRepository) UpsertSafeZones(ctx context.Context, zones []models.SafeZone) error {
	if len(zones) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}, {Name: "city"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "address", "state", "latitude", "longitude", "hours",
			"has_cameras", "description", "active", "updated_at",
		}),
	}).Create(&zones).Error
}
