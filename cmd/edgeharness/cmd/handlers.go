// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 handlers 命令，并提供各命令共用的处理器解析与日志初始化。
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oriys/edgeharness/internal/config"
	"github.com/oriys/edgeharness/internal/harness"
	"github.com/oriys/edgeharness/internal/host"
	"github.com/oriys/edgeharness/internal/wasmhandler"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// wasmHandlerName 是 WebAssembly 处理器的名称
const wasmHandlerName = "wasm"

// handlersCmd 列出可用的内置处理器
var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List built-in handlers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return NewPrinter(cmd.OutOrStdout()).PrintHandlers(harness.NewRegistry().Names())
	},
}

func init() {
	rootCmd.AddCommand(handlersCmd)
}

// resolvedHandler 是解析后的处理器
type resolvedHandler struct {
	name    string
	handler wrapper.Handler
	wasm    *wasmhandler.Handler // 仅 WebAssembly 处理器非空
	path    string               // WebAssembly 模块路径
}

// Close 释放 WebAssembly 运行时
func (r *resolvedHandler) Close(ctx context.Context) {
	if r.wasm != nil {
		r.wasm.Close(ctx)
	}
}

// resolveHandler 按名称或路径解析处理器
//
// 解析规则：
//   - 以 .wasm 结尾的参数视为模块路径
//   - "wasm" 使用 path 指定的模块
//   - 其他名称在内置处理器注册表中查找
//
// 参数:
//   - ctx: 上下文，用于初始化 WebAssembly 运行时
//   - name: 处理器名称或模块路径
//   - path: 模块路径，name 为 "wasm" 时使用
//   - logger: 平台日志记录器
//
// 返回:
//   - *resolvedHandler: 解析后的处理器
//   - error: 找不到处理器或模块加载失败
func resolveHandler(ctx context.Context, name, path string, logger *logrus.Logger) (*resolvedHandler, error) {
	if strings.HasSuffix(name, ".wasm") {
		path, name = name, wasmHandlerName
	}

	if name != wasmHandlerName {
		h, err := harness.NewRegistry().Lookup(name)
		if err != nil {
			return nil, err
		}
		return &resolvedHandler{name: name, handler: h}, nil
	}

	if path == "" {
		return nil, fmt.Errorf("handler %q requires a module path", wasmHandlerName)
	}
	wh, err := wasmhandler.New(ctx, logger)
	if err != nil {
		return nil, err
	}
	if err := wh.LoadFile(ctx, path); err != nil {
		wh.Close(ctx)
		return nil, err
	}
	return &resolvedHandler{
		name:    strings.TrimSuffix(filepath.Base(path), ".wasm"),
		handler: wh,
		wasm:    wh,
		path:    path,
	}, nil
}

// newHost 按配置创建并填充内存宿主
func newHost(cfg config.HostConfig, logger *logrus.Logger) (*host.Memory, error) {
	mem := host.NewMemory()
	for _, b := range cfg.Balances {
		account, kind, amount, err := b.Parse()
		if err != nil {
			return nil, err
		}
		if err := mem.SetBalance(account, kind, amount); err != nil {
			return nil, err
		}
	}
	if cfg.ContentDir == "" {
		return mem, nil
	}

	loaded, err := mem.LoadDir(cfg.ContentDir, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	for name, hash := range loaded {
		logger.WithFields(logrus.Fields{"file": name, "hash": hash.String()}).Debug("Content loaded")
	}
	logger.WithFields(logrus.Fields{
		"dir":   cfg.ContentDir,
		"count": len(loaded),
	}).Info("Host content loaded")
	return mem, nil
}

// newPlatformLogger 按配置创建平台日志记录器
// 平台日志记录器独立于 logrus 标准日志器，进程级重定向不会捕获平台日志
//
// 参数:
//   - cfg: 日志配置
//   - out: 日志输出目标
//
// 返回:
//   - *logrus.Logger: 日志记录器
//   - error: 日志级别或格式无法识别
func newPlatformLogger(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	switch cfg.Format {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, err
		}
	}
	logger.SetLevel(level)
	return logger, nil
}
