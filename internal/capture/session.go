// Package capture 提供处理器调用期间的诊断日志捕获功能。
//
// 一次调用对应一个 Session：调用开始时通过 Begin 创建，处理器经由注入到
// context 的 Logger（或 logrus Logger、行写入器）写入日志，调用结束后由调用方
// 一次性读取全部记录。记录保留调用顺序和原始参数，不做任何格式化。
//
// 对于仍然使用进程级全局日志器的处理器，Redirect 可以在一次调用期间把
// logrus 标准日志器和标准库 log 包重定向到指定 Session。
package capture

import (
	"io"
	"sync"
	"time"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/sirupsen/logrus"
)

// Session 持有一次调用期间捕获的有序日志记录。
// Session 可被多个 goroutine 并发写入，记录顺序即追加顺序。
type Session struct {
	mu      sync.Mutex
	records []domain.LogRecord
	now     func() time.Time

	logger *Logger

	logrusOnce sync.Once
	logrus     *logrus.Logger
}

// Begin 创建一个新的捕获会话。
// 会话立即生效，四个级别（debug、info、warn、error）的日志都会被记录。
func Begin() *Session {
	s := &Session{now: time.Now}
	s.logger = &Logger{sink: s.append}
	return s
}

// append 追加一条记录，时间取当前时间。
func (s *Session) append(level domain.LogLevel, args []any) {
	s.appendAt(s.now(), level, args)
}

// appendAt 以指定时间追加一条记录。
func (s *Session) appendAt(at time.Time, level domain.LogLevel, args []any) {
	rec := domain.NewLogRecord(at, level, args)
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Logger 返回写入该会话的控制台风格日志器。
func (s *Session) Logger() *Logger {
	return s.logger
}

// Logrus 返回写入该会话的 logrus 日志器。
// 该日志器的输出被丢弃，所有条目通过钩子追加为记录；Fatal 不会退出进程，
// 而是以 ErrFatalLogged 触发 panic，由调用包装器作为失败处理。
func (s *Session) Logrus() *logrus.Logger {
	s.logrusOnce.Do(func() {
		l := logrus.New()
		l.SetOutput(io.Discard)
		l.SetLevel(logrus.TraceLevel)
		l.AddHook(&recordHook{session: s})
		l.ExitFunc = func(int) { panic(ErrFatalLogged) }
		s.logrus = l
	})
	return s.logrus
}

// Records 返回当前已捕获记录的快照副本。
func (s *Session) Records() []domain.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len 返回当前已捕获的记录条数。
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
