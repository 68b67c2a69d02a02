package logger

import (
	"lms_backend/internal/config"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为 no-op，测试中可直接使用
var Log = zap.NewNop()

// InitLogger release 模式输出 JSON，debug 模式输出彩色控制台日志；配置了文件时同时写入轮转文件
func InitLogger(cfg *config.Config) {
	Log = New(&cfg.Log, cfg.IsRelease())
}

func New(cfg *config.LogConfig, release bool) *zap.Logger {
	level := levelFor(cfg.Level, release)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var stdout zapcore.Core
	if release {
		stdout = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), level)
	} else {
		devCfg := encCfg
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stdout = zapcore.NewCore(zapcore.NewConsoleEncoder(devCfg), zapcore.Lock(os.Stdout), level)
	}

	cores := []zapcore.Core{stdout}
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotating), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", "lms-backend")),
	)
}

func levelFor(name string, release bool) zapcore.Level {
	if name != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(name)); err == nil {
			return lvl
		}
	}
	if release {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
