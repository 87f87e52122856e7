package repositories

import (
	"context"

	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingRepository defines listing and listing image persistence.
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListingByID(ctx context.Context, id uint) (*models.Listing, error)
	ListListings(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, error)
	UpdateListing(ctx context.Context, listing *models.Listing) error
	SetListingStatus(ctx context.Context, id uint, status string) error
	DeleteListing(ctx context.Context, id uint) error
	CountActiveBySeller(ctx context.Context, sellerID uint) (int64, error)
	GetListingsByIDs(ctx context.Context, ids []uint) (map[uint]models.Listing, error)

	// AddImage appends image after the listing's existing images. It returns
	// ErrImageLimit when the listing already has limit images.
	AddImage(ctx context.Context, image *models.ListingImage, limit int) error
	DeleteImage(ctx context.Context, listingID, imageID uint) error
}

type PostgresListingRepository struct {
	db *gorm.DB
}

func NewPostgresListingRepository(db *gorm.DB) *PostgresListingRepository {
	return &PostgresListingRepository{db: db}
}

// CreateListing inserts the listing together with any Images it carries.
func (r *PostgresListingRepository) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.Status == "" {
		listing.Status = models.ListingStatusActive
	}
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *PostgresListingRepository) GetListingByID(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *PostgresListingRepository) ListListings(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, error) {
	var total int64
	if err := applyListingFilter(r.db.WithContext(ctx).Model(&models.Listing{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []models.Listing
	err := applyListingFilter(r.db.WithContext(ctx), filter).Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&listings).Error
	return listings, total, err
}

func applyListingFilter(q *gorm.DB, f models.ListingFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SellerID != 0 {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Make != "" {
		q = q.Where("LOWER(make) = LOWER(?)", f.Make)
	}
	if f.Model != "" {
		q = q.Where("LOWER(model) LIKE LOWER(?)", "%"+f.Model+"%")
	}
	if f.MinPrice > 0 {
		q = q.Where("price_cents >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		q = q.Where("price_cents <= ?", f.MaxPrice)
	}
	if f.MinYear > 0 {
		q = q.Where("year >= ?", f.MinYear)
	}
	if f.MaxYear > 0 {
		q = q.Where("year <= ?", f.MaxYear)
	}
	return q
}

// UpdateListing saves the listing's own columns; images are managed separately.
func (r *PostgresListingRepository) UpdateListing(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Omit("Images").Save(listing).Error
}

func (r *PostgresListingRepository) SetListingStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Update("status", status).Error
}

func (r *PostgresListingRepository) DeleteListing(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Listing{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *PostgresListingRepository) CountActiveBySeller(ctx context.Context, sellerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, models.ListingStatusActive).
		Count(&n).Error
	return n, err
}

func (r *PostgresListingRepository) GetListingsByIDs(ctx context.Context, ids []uint) (map[uint]models.Listing, error) {
	out := make(map[uint]models.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var listings []models.Listing
	if err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, err
	}
	for _, l := range listings {
		out[l.ID] = l
	}
	return out, nil
}

func (r *PostgresListingRepository) AddImage(ctx context.Context, image *models.ListingImage, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The listing row lock serialises uploads to the same listing.
		var listing models.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&listing, image.ListingID).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.ListingImage{}).Where("listing_id = ?", image.ListingID).Count(&n).Error; err != nil {
			return err
		}
		if n >= int64(limit) {
			return ErrImageLimit
		}
		image.Position = int(n)
		return tx.Create(image).Error
	})
}

func (r *PostgresListingRepository) DeleteImage(ctx context.Context, listingID, imageID uint) error {
	res := r.db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&models.ListingImage{}, imageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
