package service

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

// SettingsPatch 只更新非空字段
type SettingsPatch struct {
	PlatformName         *string `json:"platformName" binding:"omitempty,min=1,max=100"`
	SupportEmail         *string `json:"supportEmail" binding:"omitempty,email"`
	CertificateSignatory *string `json:"certificateSignatory" binding:"omitempty,max=100"`
}

// SettingsService 平台设置单例的读写
type SettingsService struct {
	Repo *repository.SettingsRepository
}

func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{Repo: repo}
}

// Get 首次读取时按默认值创建
func (s *SettingsService) Get(ctx context.Context) (*model.PlatformSettings, error) {
	return s.Repo.Get(ctx)
}

func (s *SettingsService) Update(ctx context.Context, patch SettingsPatch) (*model.PlatformSettings, error) {
	settings, err := s.Repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.PlatformName != nil {
		name := strings.TrimSpace(*patch.PlatformName)
		if name == "" {
			return nil, util.NewValidationError("platform name must not be empty")
		}
		settings.PlatformName = name
	}
	if patch.SupportEmail != nil {
		settings.SupportEmail = strings.TrimSpace(*patch.SupportEmail)
	}
	if patch.CertificateSignatory != nil {
		settings.CertificateSignatory = strings.TrimSpace(*patch.CertificateSignatory)
	}

	if err := s.Repo.Save(ctx, settings); err != nil {
		return nil, err
	}
	logger.Log.Info("platform settings updated", zap.String("platform_name", settings.PlatformName))
	return settings, nil
}
