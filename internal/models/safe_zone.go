package models

import "time"

// SafeZone is a publicly monitored place suggested for in-person meetups.
type SafeZone struct {
	ID          uint      `json:"id,omitempty" gorm:"primaryKey"`
	Name        string    `json:"name,omitempty" gorm:"size:120;uniqueIndex:idx_safe_zone_name_city" yaml:"name"`
	Kind        string    `json:"kind" gorm:"size:40;index" yaml:"kind"`
	Address     string    `json:"address,omitempty" yaml:"address"`
	City        string    `json:"city" gorm:"size:80;index;uniqueIndex:idx_safe_zone_name_city" yaml:"city"`
	State       string    `json:"state" gorm:"size:40" yaml:"state"`
	Latitude    float64   `json:"latitude,omitempty" gorm:"index" yaml:"latitude"`
	Longitude   float64   `json:"longitude,omitempty" gorm:"index" yaml:"longitude"`
	Hours       string    `json:"hours,omitempty" yaml:"hours"`
	HasCameras  bool      `json:"has_cameras" yaml:"has_cameras"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Active      bool      `json:"active" gorm:"index" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Redacted keeps only the city and kind of place. Anything that identifies the zone
// would let a caller look its address up, so participants see it once the deal is agreed.
func (z SafeZone) Redacted() SafeZone {
	return SafeZone{
		Kind:       z.Kind,
		City:       z.City,
		State:      z.State,
		HasCameras: z.HasCameras,
		Active:     z.Active,
	}
}

// SafeZoneWithDistance is a nearby-search result.
type SafeZoneWithDistance struct {
	SafeZone
	DistanceKm float64 `json:"distance_km"`
}

var SafeZoneKinds = []string{"police_station", "bank", "fire_station", "dealership", "shopping_center", "other"}

type CreateSafeZoneRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Kind        string  `json:"kind" validate:"required,oneof=police_station bank fire_station dealership shopping_center other"`
	Address     string  `json:"address" validate:"required,max=255"`
	City        string  `json:"city" validate:"required,max=80"`
	State       string  `json:"state" validate:"max=40"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Hours       string  `json:"hours" validate:"max=120"`
	HasCameras  bool    `json:"has_cameras"`
	Description string  `json:"description" validate:"max=1000"`
}
