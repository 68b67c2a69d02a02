package database

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established")

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	logger.Log.Info("Database migration completed")
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// AutoMigrate 建表并补齐唯一索引，测试与生产共用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.Payment{},
		&model.Progress{},
		&model.Certificate{},
		&model.Assignment{},
		&model.Submission{},
		&model.Feedback{},
		&model.PlatformSettings{},
	)
}
