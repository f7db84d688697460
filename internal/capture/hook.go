package capture

import (
	"github.com/sirupsen/logrus"
)

// recordHook 是把 logrus 条目追加到会话的钩子。
// 记录消息为 [entry.Message]，存在字段时再追加一个字段映射。
type recordHook struct {
	session *Session
}

// Levels 返回 logrus.AllLevels，所有级别都会被捕获。
func (h *recordHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志条目生成时被调用。
func (h *recordHook) Fire(entry *logrus.Entry) error {
	msg := []any{entry.Message}
	if len(entry.Data) > 0 {
		fields := make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			// error 值直接序列化会得到 {}，这里保留其文本
			if err, ok := v.(error); ok {
				fields[k] = err.Error()
				continue
			}
			fields[k] = v
		}
		msg = append(msg, fields)
	}

	at := entry.Time
	if at.IsZero() {
		at = h.session.now()
	}
	h.session.appendAt(at, fromLogrusLevel(entry.Level), msg)
	return nil
}
