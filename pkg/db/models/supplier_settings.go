package models

import "time"

// SupplierSettingsID pins the settings table to a single row.
const SupplierSettingsID = 1

// SupplierSettings is the single persisted record holding the supplier
// credentials and the current token pair. Writes are last-writer-wins.
type SupplierSettings struct {
	ID int `gorm:"column:id;primaryKey"`

	APIKey string `gorm:"column:api_key"`

	AccessToken        string     `gorm:"column:access_token"`
	AccessTokenExpiry  *time.Time `gorm:"column:access_token_expiry"`
	RefreshToken       string     `gorm:"column:refresh_token"`
	RefreshTokenExpiry *time.Time `gorm:"column:refresh_token_expiry"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the settings in their own table despite the struct name.
func (SupplierSettings) TableName() string {
	return "supplier_settings"
}
