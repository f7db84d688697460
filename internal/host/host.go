// Package host 声明了处理器可以使用的宿主能力。
//
// 宿主提供按内容哈希获取数据、经过证明校验的分块读取以及账户余额查询。
// 本包只定义这些契约以及一个用于本地开发和测试的内存实现，
// 不实现内容寻址存储或哈希校验。
package host

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/oriys/edgeharness/internal/domain"
)

// HashSize 是内容哈希的字节长度。
const HashSize = 32

// Hash 是 32 字节的内容标识。
type Hash [HashSize]byte

// ParseHash 从十六进制字符串解析内容哈希。
//
// 参数:
//   - s: 64 个十六进制字符，可带 "0x" 前缀
//
// 返回:
//   - Hash: 解析结果
//   - error: 格式错误或长度不是 32 字节时返回 ErrInvalidHash
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) != HashSize {
		return h, fmt.Errorf("%w: %q", domain.ErrInvalidHash, s)
	}
	copy(h[:], raw)
	return h, nil
}

// String 返回小写十六进制表示。
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Account 是宿主中的客户账户标识。
type Account []byte

// ParseAccount 从十六进制字符串解析账户标识。
func ParseAccount(s string) (Account, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAccount, s)
	}
	return Account(raw), nil
}

// String 返回小写十六进制表示。
func (a Account) String() string { return hex.EncodeToString(a) }

// BalanceKind 表示余额类型。
type BalanceKind string

// 受支持的余额类型
const (
	BalanceFLK       BalanceKind = "flk"
	BalanceBandwidth BalanceKind = "bandwidth"
)

// ParseBalanceKind 解析余额类型，大小写不敏感。
func ParseBalanceKind(s string) (BalanceKind, error) {
	k := BalanceKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case BalanceFLK, BalanceBandwidth:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidBalanceKind, s)
}

// maxBalance 是余额上限 2^256。
var maxBalance = new(big.Int).Lsh(big.NewInt(1), 256)

// ValidBalance 判断余额是否落在无符号 256 位整数范围内。
func ValidBalance(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxBalance) < 0
}

// Host 是宿主向处理器暴露的能力集合。
type Host interface {
	// FetchContent 按哈希获取内容并缓存到块存储，返回是否成功
	FetchContent(ctx context.Context, hash Hash) (bool, error)
	// LoadContent 加载块存储中内容的句柄
	LoadContent(ctx context.Context, hash Hash) (ContentHandle, error)
	// QueryBalance 查询账户余额，结果为无符号 256 位整数
	QueryBalance(ctx context.Context, account Account, kind BalanceKind) (*big.Int, error)
}

// ContentHandle 是块存储中内容的句柄。
// 它持有内容的证明，并按索引读取内部块。
type ContentHandle interface {
	// Proof 返回内容的原始证明
	Proof() []byte
	// Len 返回内容的块数
	Len() int
	// ReadBlock 读取指定索引的块，索引范围为 [0, Len())
	ReadBlock(ctx context.Context, idx int) ([]byte, error)
}

type hostKey struct{}

// WithHost 把宿主绑定到上下文。
func WithHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, hostKey{}, h)
}

// FromContext 返回上下文绑定的宿主，未绑定时返回 nil。
func FromContext(ctx context.Context) Host {
	h, _ := ctx.Value(hostKey{}).(Host)
	return h
}
