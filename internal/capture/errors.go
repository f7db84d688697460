package capture

import "errors"

var (
	// ErrRedirectActive 表示已有会话占用进程级重定向
	ErrRedirectActive = errors.New("capture: process-wide redirection already active")
	// ErrFatalLogged 表示处理器通过会话的 logrus 日志器记录了 Fatal 级别日志
	ErrFatalLogged = errors.New("capture: fatal log entry")
)
