package host

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/oriys/edgeharness/internal/domain"
)

// Memory 是基于内存的宿主实现。
// 它不校验内容与哈希的对应关系，仅用于本地开发服务器和测试。
type Memory struct {
	mu       sync.RWMutex
	content  map[Hash]*memoryContent
	balances map[string]*big.Int
}

type memoryContent struct {
	proof  []byte
	blocks [][]byte
}

// NewMemory 创建一个空的内存宿主。
func NewMemory() *Memory {
	return &Memory{
		content:  make(map[Hash]*memoryContent),
		balances: make(map[string]*big.Int),
	}
}

var _ Host = (*Memory)(nil)

// Put 存入一份内容，blocks 按顺序组成内容的各个块。
// 传入的切片会被复制。
func (m *Memory) Put(hash Hash, proof []byte, blocks ...[]byte) {
	c := &memoryContent{proof: append([]byte(nil), proof...)}
	for _, b := range blocks {
		c.blocks = append(c.blocks, append([]byte(nil), b...))
	}

	m.mu.Lock()
	m.content[hash] = c
	m.mu.Unlock()
}

// SetBalance 设置账户余额。
// 余额为负或不小于 2^256 时返回 ErrBalanceOverflow。
func (m *Memory) SetBalance(account Account, kind BalanceKind, v *big.Int) error {
	if _, err := ParseBalanceKind(string(kind)); err != nil {
		return err
	}
	if !ValidBalance(v) {
		return fmt.Errorf("%w: %v", domain.ErrBalanceOverflow, v)
	}

	m.mu.Lock()
	m.balances[balanceKey(account, kind)] = new(big.Int).Set(v)
	m.mu.Unlock()
	return nil
}

// FetchContent 实现 Host 接口，内容存在时返回 true。
func (m *Memory) FetchContent(ctx context.Context, hash Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	_, ok := m.content[hash]
	m.mu.RUnlock()
	return ok, nil
}

// LoadContent 实现 Host 接口。
func (m *Memory) LoadContent(ctx context.Context, hash Hash) (ContentHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	c, ok := m.content[hash]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, hash)
	}
	return c, nil
}

// QueryBalance 实现 Host 接口，未设置的余额为 0。
func (m *Memory) QueryBalance(ctx context.Context, account Account, kind BalanceKind) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseBalanceKind(string(kind)); err != nil {
		return nil, err
	}
	if len(account) == 0 {
		return nil, domain.ErrInvalidAccount
	}

	m.mu.RLock()
	v, ok := m.balances[balanceKey(account, kind)]
	m.mu.RUnlock()
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(v), nil
}

func balanceKey(account Account, kind BalanceKind) string {
	return string(kind) + "/" + account.String()
}

func (c *memoryContent) Proof() []byte { return append([]byte(nil), c.proof...) }

func (c *memoryContent) Len() int { return len(c.blocks) }

func (c *memoryContent) ReadBlock(ctx context.Context, idx int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(c.blocks) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", domain.ErrBlockOutOfRange, idx, len(c.blocks))
	}
	return append([]byte(nil), c.blocks[idx]...), nil
}
