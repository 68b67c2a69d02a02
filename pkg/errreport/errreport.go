// Package errreport 将服务端 5xx 错误上报到 Rollbar，未配置 token 时不做任何事。
package errreport

import (
	"sync/atomic"

	"github.com/rollbar/rollbar-go"
)

var enabled atomic.Bool

func Init(token, environment string) {
	if token == "" {
		return
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetServerRoot("lms_backend")
	enabled.Store(true)
}

func Enabled() bool {
	return enabled.Load()
}

// Report 异步上报，extras 为附加上下文
func Report(err error, extras map[string]interface{}) {
	if err == nil || !enabled.Load() {
		return
	}
	if len(extras) > 0 {
		rollbar.Error(err, extras)
		return
	}
	rollbar.Error(err)
}

// Close 在进程退出前等待队列中的上报完成
func Close() {
	if enabled.Load() {
		rollbar.Wait()
	}
}
