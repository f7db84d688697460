// Package wasmhandler 提供基于 WebAssembly 模块的处理器实现。
//
// 模块通过 wazero 在沙箱中执行，必须导出以下函数：
//   - alloc(size i32) -> ptr i32：在线性内存中分配输入缓冲区
//   - handle(ptr i32, len i32) -> i64：处理 JSON 编码的请求，返回 (outPtr<<32 | outLen)
//
// 宿主在 "env" 模块中向客户端提供：
//   - log(level i32, ptr i32, len i32)：写入一条诊断日志（0=debug 1=info 2=warn 3=error）
//   - fetch_content(hashPtr i32) -> i32：按 32 字节哈希获取内容，成功返回 1
//
// 客户端的 WASI stdout 按行记录为 info 日志，stderr 记录为 error 日志。
package wasmhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/oriys/edgeharness/internal/capture"
	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/host"
)

// 模块 ABI 约定的导出名称
const (
	exportAlloc  = "alloc"
	exportHandle = "handle"
	hostModule   = "env"
)

var (
	// ErrNotLoaded 表示尚未加载任何模块
	ErrNotLoaded = errors.New("wasm module not loaded")
	// ErrMissingExport 表示模块缺少约定的导出函数
	ErrMissingExport = errors.New("wasm module missing required export")
	// ErrMemoryAccess 表示读写客户端线性内存越界
	ErrMemoryAccess = errors.New("wasm memory access out of range")
)

// guestLevels 是客户端日志级别编号到领域级别的映射。
var guestLevels = []domain.LogLevel{
	domain.LogLevelDebug,
	domain.LogLevelInfo,
	domain.LogLevelWarn,
	domain.LogLevelError,
}

// Handler 执行 WebAssembly 模块的处理器。
// 编译后的模块被缓存，每次调用实例化一个全新的匿名实例，因此调用之间互不共享状态。
type Handler struct {
	mu       sync.RWMutex          // 保护 compiled 与 source，重新加载时持写锁
	runtime  wazero.Runtime        // wazero 运行时
	compiled wazero.CompiledModule // 当前已编译的模块
	source   string                // 模块来源，用于日志
	logger   *logrus.Logger        // 平台日志记录器
}

// New 创建 wasm 处理器并注册宿主函数。
//
// 参数：
//   - ctx: 上下文，用于初始化运行时
//   - logger: 平台日志记录器，可为 nil
//
// 返回：
//   - *Handler: 尚未加载模块的处理器
//   - error: 宿主模块注册失败时返回错误
func New(ctx context.Context, logger *logrus.Logger) (*Handler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}

	_, err := r.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(guestLog).Export("log").
		NewFunctionBuilder().WithFunc(guestFetchContent).Export("fetch_content").
		Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	return &Handler{runtime: r, logger: logger}, nil
}

// Load 编译模块并替换当前模块。
// 新模块缺少约定导出时返回 ErrMissingExport，当前模块保持不变。
func (h *Handler) Load(ctx context.Context, source string, wasm []byte) error {
	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", source, err)
	}

	exports := compiled.ExportedFunctions()
	for _, name := range []string{exportAlloc, exportHandle} {
		if _, ok := exports[name]; !ok {
			compiled.Close(ctx)
			return fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
	}

	h.mu.Lock()
	old := h.compiled
	h.compiled = compiled
	h.source = source
	h.mu.Unlock()

	if old != nil {
		old.Close(ctx)
	}

	h.logger.WithFields(logrus.Fields{
		"source": source,
		"bytes":  len(wasm),
	}).Info("Wasm module loaded")
	return nil
}

// LoadFile 从文件加载模块。
func (h *Handler) LoadFile(ctx context.Context, path string) error {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read wasm module: %w", err)
	}
	return h.Load(ctx, path, wasm)
}

// Source 返回当前模块的来源。
func (h *Handler) Source() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.source
}

// Handle 实现 wrapper.Handler 接口。
//
// 请求以 JSON 编码写入客户端内存。输出为合法 JSON 时以 json.RawMessage 返回，
// 否则以字符串返回；形如 {"error":{"message":...}} 的输出视为处理器失败。
// 客户端 trap 作为名为 "WasmTrap" 的错误返回。
func (h *Handler) Handle(ctx context.Context, req *domain.HTTPRequest) (any, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.compiled == nil {
		return nil, ErrNotLoaded
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	stdout, stderr := guestOutput(ctx)
	defer stdout.Close()
	defer stderr.Close()

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStdout(stdout).
		WithStderr(stderr).
		WithStartFunctions("_initialize")

	mod, err := h.runtime.InstantiateModule(ctx, h.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer mod.Close(ctx)

	output, err := call(ctx, mod, input)
	if err != nil {
		return nil, err
	}
	return decodeOutput(output)
}

// Close 释放运行时及其编译缓存。
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.compiled = nil
	return h.runtime.Close(ctx)
}

// call 按 alloc/handle 约定执行一次处理。
func call(ctx context.Context, mod api.Module, input []byte) ([]byte, error) {
	results, err := mod.ExportedFunction(exportAlloc).Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, trapError(exportAlloc, err)
	}
	ptr := uint32(results[0])

	mem := mod.Memory()
	if mem == nil || !mem.Write(ptr, input) {
		return nil, fmt.Errorf("%w: write %d bytes at %d", ErrMemoryAccess, len(input), ptr)
	}

	results, err = mod.ExportedFunction(exportHandle).Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return nil, trapError(exportHandle, err)
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)
	out, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at %d", ErrMemoryAccess, outLen, outPtr)
	}
	// Read 返回的是内存视图，实例关闭后失效
	return append([]byte(nil), out...), nil
}

// trapError 把客户端执行失败转换为结构化错误，原始错误作为原因保留。
func trapError(fn string, err error) error {
	return domain.WrapHandlerError("WasmTrap", fmt.Sprintf("%s: %v", fn, err), err)
}

// guestFailure 是客户端报告失败时的输出形状。
type guestFailure struct {
	Error *struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error"`
}

// decodeOutput 解析客户端输出。
func decodeOutput(out []byte) (any, error) {
	if !json.Valid(out) {
		return string(out), nil
	}
	var failure guestFailure
	if err := json.Unmarshal(out, &failure); err == nil && failure.Error != nil && failure.Error.Message != "" {
		return nil, domain.NewHandlerError(failure.Error.Name, failure.Error.Message)
	}
	return json.RawMessage(out), nil
}

// guestOutput 返回客户端 stdout 与 stderr 的去向。
// 上下文未绑定捕获会话时输出被丢弃。
func guestOutput(ctx context.Context) (stdout, stderr io.WriteCloser) {
	s := capture.FromContext(ctx)
	if s == nil {
		return nopCloser{io.Discard}, nopCloser{io.Discard}
	}
	return s.Writer(domain.LogLevelInfo), s.Writer(domain.LogLevelError)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// guestLog 是宿主函数 env.log。
func guestLog(ctx context.Context, m api.Module, level, ptr, size uint32) {
	msg, ok := m.Memory().Read(ptr, size)
	if !ok {
		capture.L(ctx).Error("wasm log: message out of range")
		return
	}
	l := domain.LogLevelInfo
	if int(level) < len(guestLevels) {
		l = guestLevels[level]
	}
	capture.L(ctx).Log(l, string(msg))
}

// guestFetchContent 是宿主函数 env.fetch_content。
func guestFetchContent(ctx context.Context, m api.Module, hashPtr uint32) uint32 {
	raw, ok := m.Memory().Read(hashPtr, host.HashSize)
	if !ok {
		return 0
	}
	hst := host.FromContext(ctx)
	if hst == nil {
		capture.L(ctx).Warn("fetch_content: no host bound")
		return 0
	}

	var hash host.Hash
	copy(hash[:], raw)
	fetched, err := hst.FetchContent(ctx, hash)
	if err != nil {
		capture.L(ctx).Error("fetch_content:", err)
		return 0
	}
	if fetched {
		return 1
	}
	return 0
}
