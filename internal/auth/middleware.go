package auth

import (
	"context"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader 是默认的 API Key 请求头
const DefaultAPIKeyHeader = "X-API-Key"

// contextKey 是用于在 context 中存储值的自定义类型。
type contextKey string

// UserContextKey 是用于在请求上下文中存储调用方信息的键
const UserContextKey contextKey = "user"

// UserContext 存储已认证调用方的上下文信息。
type UserContext struct {
	// KeyID 是 API Key 哈希的前 8 位十六进制，用于日志关联
	KeyID string
	// Method 认证方式，可能的值为 "apikey" 或 "bearer"
	Method string
}

// APIKeyValidator 定义了 API Key 验证器的接口。
type APIKeyValidator interface {
	// ValidateAPIKey 验证给定的 API Key 是否有效。
	ValidateAPIKey(key string) (*UserContext, error)
}

// Middleware 是认证中间件。
type Middleware struct {
	apiKeyHeader string
	keyValidator APIKeyValidator
	enabled      bool
}

// NewMiddleware 创建并返回一个新的认证中间件实例。
// 参数:
//   - apiKeyHeader: 用于传递 API Key 的 HTTP 头名称，为空时使用 X-API-Key
//   - keyValidator: API Key 验证器实现
//   - enabled: 是否启用认证功能
func NewMiddleware(apiKeyHeader string, keyValidator APIKeyValidator, enabled bool) *Middleware {
	if apiKeyHeader == "" {
		apiKeyHeader = DefaultAPIKeyHeader
	}
	return &Middleware{
		apiKeyHeader: apiKeyHeader,
		keyValidator: keyValidator,
		enabled:      enabled && keyValidator != nil,
	}
}

// Authenticate 是一个 HTTP 中间件函数，用于验证请求的身份。
// API Key 可以放在配置的请求头中，也可以以 "Authorization: Bearer <key>" 的形式传递。
// 认证成功后，调用方信息会被存储在请求的 context 中。
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		key, method := r.Header.Get(m.apiKeyHeader), "apikey"
		if key == "" {
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				key, method = strings.TrimPrefix(authHeader, "Bearer "), "bearer"
			}
		}
		if key != "" {
			if user, err := m.keyValidator.ValidateAPIKey(key); err == nil {
				user.Method = method
				ctx := context.WithValue(r.Context(), UserContextKey, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	})
}

// GetUser 从请求上下文中提取已认证的调用方信息，未认证时返回 nil。
func GetUser(ctx context.Context) *UserContext {
	if user, ok := ctx.Value(UserContextKey).(*UserContext); ok {
		return user
	}
	return nil
}
