package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

// SettingsRepository 平台设置单例，以固定主键读写
type SettingsRepository struct {
	DB       *gorm.DB
	Defaults model.PlatformSettings
}

func NewSettingsRepository(db *gorm.DB, defaults model.PlatformSettings) *SettingsRepository {
	defaults.Key = model.PlatformSettingsKey
	return &SettingsRepository{DB: db, Defaults: defaults}
}

func (r *SettingsRepository) Get(ctx context.Context) (*model.PlatformSettings, error) {
	settings := r.Defaults
	err := r.DB.WithContext(ctx).
		Where(model.PlatformSettings{Key: model.PlatformSettingsKey}).
		FirstOrCreate(&settings).Error
	return &settings, err
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.PlatformSettings) error {
	settings.Key = model.PlatformSettingsKey
	return r.DB.WithContext(ctx).Save(settings).Error
}
