// Package domain 定义了执行框架的核心领域模型。
package domain

import "errors"

// 领域错误定义
// 这些错误用于在框架的不同层之间传递可识别的失败原因。

var (
	// ========== 请求相关错误 ==========

	// ErrInvalidMethod 表示 HTTP 请求方法不在受支持的集合内
	ErrInvalidMethod = errors.New("invalid http method")
	// ErrInvalidHeaders 表示响应头格式不属于任何受支持的形状
	ErrInvalidHeaders = errors.New("invalid response headers")
	// ErrInvalidLogLevel 表示日志级别无法识别
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ========== 调用相关错误 ==========

	// ErrInvocationFailed 表示处理器调用失败
	ErrInvocationFailed = errors.New("invocation failed")
	// ErrHandlerNotFound 表示请求的处理器不存在
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrInvocationNotFound 表示调用记录不存在
	ErrInvocationNotFound = errors.New("invocation not found")

	// ========== 宿主相关错误 ==========

	// ErrInvalidHash 表示内容哈希不是 32 字节
	ErrInvalidHash = errors.New("invalid content hash: must be 32 bytes")
	// ErrInvalidAccount 表示账户标识无法解析
	ErrInvalidAccount = errors.New("invalid account identifier")
	// ErrInvalidBalanceKind 表示余额类型不受支持
	ErrInvalidBalanceKind = errors.New("invalid balance kind")
	// ErrContentNotFound 表示宿主中不存在该内容
	ErrContentNotFound = errors.New("content not found")
	// ErrBlockOutOfRange 表示读取的块索引超出 [0, length)
	ErrBlockOutOfRange = errors.New("block index out of range")
	// ErrBalanceOverflow 表示余额超出无符号 256 位整数范围
	ErrBalanceOverflow = errors.New("balance out of uint256 range")
)
