package supplier

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jslopezg/velastore-backend/pkg/db/models"
)

// SettingsRepository persists the single supplier settings record. Writes
// are last-writer-wins on the one row; no cross-document transaction is
// needed for token refreshes.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository builds a repository tied to the provided GORM DB.
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row. Returns (nil, nil) when the supplier has never
// been connected.
func (r *SettingsRepository) Get(ctx context.Context) (*models.SupplierSettings, error) {
	var settings models.SupplierSettings
	err := r.db.WithContext(ctx).First(&settings, "id = ?", models.SupplierSettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert writes the settings row, creating it on first connect.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.SupplierSettings) error {
	settings.ID = models.SupplierSettingsID
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(settings).Error
}
