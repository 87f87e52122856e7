package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ListingStatusActive  = "active"
	ListingStatusPending = "pending"
	ListingStatusSold    = "sold"

	MaxListingImages = 12
)

// Listing is a motorcycle offered for sale.
type Listing struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	SellerID    uint           `json:"seller_id" gorm:"index"`
	Title       string         `json:"title" gorm:"size:120"`
	Description string         `json:"description"`
	Make        string         `json:"make" gorm:"size:60;index"`
	Model       string         `json:"model" gorm:"size:60;index"`
	Year        int            `json:"year" gorm:"index"`
	Mileage     int            `json:"mileage"`
	PriceCents  int64          `json:"price_cents" gorm:"index"`
	VIN         *string        `json:"vin,omitempty" gorm:"size:17;index"`
	City        string         `json:"city" gorm:"size:80"`
	State       string         `json:"state" gorm:"size:40"`
	Status      string         `json:"status" gorm:"size:20;default:active;index"`
	Images      []ListingImage `json:"images,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// ListingImage is an already uploaded photo referenced by URL.
type ListingImage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ListingID uint      `json:"listing_id" gorm:"index"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite bookmarks a listing for a user.
type Favorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_listing_favorite"`
	ListingID uint      `json:"listing_id" gorm:"index;uniqueIndex:idx_user_listing_favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingFilter narrows listing searches. Zero values are ignored.
type ListingFilter struct {
	Make     string
	Model    string
	MinPrice int64
	MaxPrice int64
	MinYear  int
	MaxYear  int
	Status   string
	SellerID uint
}

type CreateListingRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=120"`
	Description string   `json:"description" validate:"max=5000"`
	Make        string   `json:"make" validate:"required,max=60"`
	Model       string   `json:"model" validate:"required,max=60"`
	Year        int      `json:"year" validate:"required,gte=1900"`
	Mileage     int      `json:"mileage" validate:"gte=0"`
	PriceCents  int64    `json:"price_cents" validate:"required,gt=0"`
	VIN         string   `json:"vin,omitempty" validate:"omitempty,vin"`
	City        string   `json:"city" validate:"max=80"`
	State       string   `json:"state" validate:"max=40"`
	ImageURLs   []string `json:"image_urls,omitempty" validate:"omitempty,max=12,dive,url"`
}

type UpdateListingRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Mileage     *int    `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	PriceCents  *int64  `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=80"`
	State       *string `json:"state,omitempty" validate:"omitempty,max=40"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active pending sold"`
}

type AddListingImageRequest struct {
	URL string `json:"url" validate:"required,url"`
}
