package capture

import "context"

// sessionKey 是在上下文中存储 Session 的键类型。
type sessionKey struct{}

// WithSession 返回绑定了指定会话的上下文。
// 处理器通过 L(ctx) 取得日志器，从而不依赖任何进程级全局状态。
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext 返回上下文中绑定的会话，未绑定时返回 nil。
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// L 返回上下文中会话的日志器。
// 未绑定会话时返回转发到 logrus 标准日志器的日志器，调用方无需判空。
func L(ctx context.Context) *Logger {
	if s := FromContext(ctx); s != nil {
		return s.Logger()
	}
	return standardLogger
}
