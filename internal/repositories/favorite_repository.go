package repositories

import (
	"context"

	"github.com/safetrade/marketplace/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FavoriteRepository defines the interface for bookmarked listings
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, userID, listingID uint) error
	RemoveFavorite(ctx context.Context, userID, listingID uint) error
	ListFavoriteListings(ctx context.Context, userID uint) ([]models.Listing, error)
}

type postgresFavoriteRepository struct {
	db *gorm.DB
}

func NewPostgresFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &postgresFavoriteRepository{db: db}
}

// AddFavorite is idempotent: favoriting twice keeps a single row.
func (r *postgresFavoriteRepository) AddFavorite(ctx context.Context, userID, listingID uint) error {
	fav := &models.Favorite{UserID: userID, ListingID: listingID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(fav).Error
}

func (r *postgresFavoriteRepository) RemoveFavorite(ctx context.Context, userID, listingID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&models.Favorite{}).Error
}

func (r *postgresFavoriteRepository) ListFavoriteListings(ctx context.Context, userID uint) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.listing_id = listings.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").
		Find(&listings).Error
	return listings, err
}
