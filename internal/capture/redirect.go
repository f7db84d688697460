package capture

import (
	"io"
	"log"
	"sync"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/sirupsen/logrus"
)

// 进程级重定向状态，同一时刻只允许一个会话占用。
var (
	redirectMu     sync.Mutex
	redirectActive bool
)

// Redirect 把 logrus 标准日志器和标准库 log 包重定向到指定会话。
//
// 重定向是进程级的：在 restore 被调用之前，进程内任何位置经由这两个
// 全局日志器输出的内容都会成为该会话的记录。标准库 log 的每一行记为
// info 级别。已有重定向生效时返回 ErrRedirectActive。
//
// 参数：
//   - s: 接收日志的会话
//
// 返回：
//   - restore: 恢复原有日志配置的函数，可重复调用
//   - err: 重定向已被占用时返回错误
func Redirect(s *Session) (restore func(), err error) {
	redirectMu.Lock()
	defer redirectMu.Unlock()

	if redirectActive {
		return nil, ErrRedirectActive
	}
	redirectActive = true

	std := logrus.StandardLogger()
	prevOut := std.Out
	prevLevel := std.GetLevel()
	hooks := make(logrus.LevelHooks)
	hooks.Add(&recordHook{session: s})
	prevHooks := std.ReplaceHooks(hooks)
	std.SetOutput(io.Discard)
	std.SetLevel(logrus.TraceLevel)

	w := s.Writer(domain.LogLevelInfo)
	prevWriter := log.Writer()
	prevFlags := log.Flags()
	prevPrefix := log.Prefix()
	log.SetOutput(w)
	log.SetFlags(0)
	log.SetPrefix("")

	var once sync.Once
	restore = func() {
		once.Do(func() {
			redirectMu.Lock()
			defer redirectMu.Unlock()

			log.SetOutput(prevWriter)
			log.SetFlags(prevFlags)
			log.SetPrefix(prevPrefix)
			_ = w.Close()

			std.ReplaceHooks(prevHooks)
			std.SetOutput(prevOut)
			std.SetLevel(prevLevel)

			redirectActive = false
		})
	}
	return restore, nil
}
