package capture

import (
	"bytes"
	"sync"

	"github.com/oriys/edgeharness/internal/domain"
)

// LineWriter 是面向行的日志写入器，每写入一行完整文本追加一条记录。
// 未以换行结尾的残余内容在 Close 时作为最后一条记录写入。
type LineWriter struct {
	session *Session
	level   domain.LogLevel

	mu  sync.Mutex
	buf []byte
}

// Writer 返回以指定级别写入该会话的行写入器。
func (s *Session) Writer(level domain.LogLevel) *LineWriter {
	if !level.Valid() {
		level = domain.LogLevelInfo
	}
	return &LineWriter{session: s, level: level}
}

// Write 实现 io.Writer 接口。
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(w.buf[:i], []byte("\r"))
		w.session.append(w.level, []any{string(line)})
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close 写出残余内容，实现 io.Closer 接口。
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.session.append(w.level, []any{string(w.buf)})
		w.buf = nil
	}
	return nil
}
