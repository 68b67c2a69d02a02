package model

import "time"

// PlatformSettingsKey 平台设置单例的固定主键
const PlatformSettingsKey = "platform"

type PlatformSettings struct {
	Key                  string    `gorm:"primaryKey;size:50" json:"-"`
	PlatformName         string    `gorm:"size:100;not null" json:"platformName"`
	SupportEmail         string    `gorm:"size:100" json:"supportEmail"`
	CertificateSignatory string    `gorm:"size:100" json:"certificateSignatory"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (PlatformSettings) TableName() string {
	return "platform_settings"
}
