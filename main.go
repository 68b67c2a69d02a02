package main

import (
	"flag"
	"lms_backend/internal/app"
	"lms_backend/internal/config"
	"lms_backend/pkg/errreport"
	"lms_backend/pkg/logger"
	"log"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("load config from %s: %v", *configDir, err)
	}
	cfg.MigrateOnly = *migrateOnly
	cfg.ConfigDir = *configDir

	application := app.NewApp(cfg)
	defer logger.Log.Sync()
	defer errreport.Close()

	if cfg.MigrateOnly {
		logger.Log.Info("migration finished")
		return
	}
	application.Run()
}
