package host

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultBlockSize 是从目录加载内容时的默认分块大小。
const DefaultBlockSize = 64 * 1024

// LoadDir 把目录下的每个普通文件存入内存宿主。
// 内容标识取文件内容的 SHA-256，证明即该摘要本身；子目录与隐藏文件被忽略。
//
// 参数:
//   - dir: 内容目录
//   - blockSize: 分块大小，不大于 0 时使用 DefaultBlockSize
//
// 返回:
//   - map[string]Hash: 文件名到内容标识的映射
//   - error: 读取目录或文件失败时返回错误
func (m *Memory) LoadDir(dir string, blockSize int) (map[string]Hash, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	loaded := make(map[string]Hash, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || name[0] == '.' {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read content %s: %w", name, err)
		}
		hash := Hash(sha256.Sum256(data))
		m.Put(hash, hash[:], split(data, blockSize)...)
		loaded[name] = hash
	}
	return loaded, nil
}

// split 按固定大小切分数据，空数据得到零个块。
func split(data []byte, size int) [][]byte {
	blocks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		blocks = append(blocks, data[:n])
		data = data[n:]
	}
	return blocks
}
