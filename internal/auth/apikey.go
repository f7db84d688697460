// Package auth 提供框架控制接口的访问认证。
// 控制接口（调用记录查询等）可以要求调用方携带 API Key，
// 配置中只保存 API Key 的 SHA-256 哈希值。
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// KeyPrefix 是生成的 API Key 前缀
const KeyPrefix = "eh_"

// 认证错误定义
var (
	// ErrAPIKeyNotFound 表示请求的 API Key 未被配置
	ErrAPIKeyNotFound = errors.New("api key not found")
	// ErrInvalidKeyHash 表示配置的哈希值不是 64 位十六进制串
	ErrInvalidKeyHash = errors.New("invalid api key hash")
)

// GenerateAPIKey 生成一个新的 API Key。
// 返回:
//   - string: 原始 API Key（以 "eh_" 为前缀，只展示一次）
//   - string: API Key 的 SHA-256 哈希值（写入配置）
//   - error: 如果随机数生成失败则返回错误
func GenerateAPIKey() (string, string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	key := KeyPrefix + hex.EncodeToString(bytes)
	return key, HashAPIKey(key), nil
}

// HashAPIKey 计算 API Key 的 SHA-256 哈希值（十六进制编码）。
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// StaticKeys 是基于固定哈希列表的 API Key 验证器。
type StaticKeys struct {
	hashes [][]byte
}

// NewStaticKeys 从哈希列表创建验证器。
//
// 参数:
//   - hashes: API Key 的 SHA-256 哈希值（十六进制，不区分大小写）
//
// 返回:
//   - *StaticKeys: 验证器
//   - error: 任一哈希值格式不正确时返回 ErrInvalidKeyHash
func NewStaticKeys(hashes []string) (*StaticKeys, error) {
	keys := &StaticKeys{}
	for _, h := range hashes {
		raw, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil || len(raw) != sha256.Size {
			return nil, ErrInvalidKeyHash
		}
		keys.hashes = append(keys.hashes, raw)
	}
	return keys, nil
}

// Len 返回已配置的 API Key 数量。
func (k *StaticKeys) Len() int { return len(k.hashes) }

// ValidateAPIKey 实现 APIKeyValidator 接口。
// 比较使用常量时间，遍历全部哈希后才返回。
func (k *StaticKeys) ValidateAPIKey(key string) (*UserContext, error) {
	sum := sha256.Sum256([]byte(key))
	found := 0
	for _, h := range k.hashes {
		found |= subtle.ConstantTimeCompare(sum[:], h)
	}
	if found == 0 {
		return nil, ErrAPIKeyNotFound
	}
	return &UserContext{KeyID: hex.EncodeToString(sum[:4]), Method: "apikey"}, nil
}
