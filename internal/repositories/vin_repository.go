package repositories

import (
	"context"
	"errors"

	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
)

// VinRepository stores stolen-vehicle reports and the audit trail of VIN checks.
type VinRepository interface {
	// FindStolenReport returns nil, nil when the VIN has no report.
	FindStolenReport(ctx context.Context, vin string) (*models.StolenVehicleReport, error)
	CreateStolenReport(ctx context.Context, report *models.StolenVehicleReport) error
	RecordCheck(ctx context.Context, check *models.VinCheck) error
}

type postgresVinRepository struct {
	db *gorm.DB
}

func NewPostgresVinRepository(db *gorm.DB) VinRepository {
	return &postgresVinRepository{db: db}
}

func (r *postgresVinRepository) FindStolenReport(ctx context.Context, vin string) (*models.StolenVehicleReport, error) {
	var report models.StolenVehicleReport
	err := r.db.WithContext(ctx).Where("vin = ?", vin).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *postgresVinRepository) CreateStolenReport(ctx context.Context, report *models.StolenVehicleReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *postgresVinRepository) RecordCheck(ctx context.Context, check *models.VinCheck) error {
	return r.db.WithContext(ctx).Create(check).Error
}
