package configwatcher

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type ConfigReloader func(cfg *config.Config)

const debounce = time.Second

// Watch 监听配置目录，文件写入后防抖重新加载并回调；ctx 取消时退出
func Watch(ctx context.Context, configDir string, reloader ConfigReloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		watcher.Close()
		return err
	}
	// 监听目录而不是文件，编辑器替换写入时文件句柄会失效
	if err := watcher.Add(absDir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != "config.yaml" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// 防抖处理
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				newCfg, err := config.LoadConfig(configDir)
				if err != nil {
					logger.Log.Error("Failed to reload config", zap.Error(err))
					continue
				}
				logger.Log.Info("Config reloaded", zap.String("dir", absDir))
				reloader(newCfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Log.Error("Config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
