package models

import "time"

// StolenVehicleReport marks a VIN as reported stolen.
type StolenVehicleReport struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	VIN        string    `json:"vin" gorm:"size:17;uniqueIndex"`
	Source     string    `json:"source" gorm:"size:80"`
	ReportedAt time.Time `json:"reported_at"`
	CreatedBy  uint      `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// VinCheck records a lookup made by a user.
type VinCheck struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	VIN       string    `json:"vin" gorm:"size:32;index"`
	Valid     bool      `json:"valid"`
	Stolen    bool      `json:"stolen"`
	CheckedAt time.Time `json:"checked_at"`
}

type VinCheckRequest struct {
	VIN string `json:"vin" validate:"required,max=32"`
}

type VinCheckResponse struct {
	VIN       string               `json:"vin"`
	Valid     bool                 `json:"valid"`
	Reason    string               `json:"reason,omitempty"`
	WMI       string               `json:"wmi,omitempty"`
	Region    string               `json:"region,omitempty"`
	ModelYear int                  `json:"model_year,omitempty"`
	Stolen    bool                 `json:"stolen"`
	Report    *StolenVehicleReport `json:"report,omitempty"`
}

type CreateStolenReportRequest struct {
	VIN        string     `json:"vin" validate:"required,vin"`
	Source     string     `json:"source" validate:"required,max=80"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`
}
