// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 invoke 命令，在本地单次调用处理器。
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oriys/edgeharness/internal/config"
	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/harness"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// invokeCmd 是 invoke 命令的 cobra.Command 实例。
var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Invoke a handler once",
	Long: `在进程内单次调用处理器，并打印调用结局。

请求体可以通过 --data 直接传入，也可以通过 --file 从文件读取（"-" 表示标准输入）。
请求体、query 参数都会尽力解析为 JSON 值。

Examples:
  # 调用内置 echo 处理器
  edgeharness invoke --handler echo --data '{"name": "World"}'

  # 以调试模式调用，输出包含捕获的日志
  edgeharness invoke --handler fail --query message=oops --debug

  # 读取宿主内容目录中的一份内容
  edgeharness invoke --handler content --content-dir ./content --query hash=<sha256>

  # 调用 WebAssembly 模块，请求体来自标准输入
  echo '{"n": 1}' | edgeharness invoke --handler ./handler.wasm --file - -o json`,
	RunE: runInvoke,
}

// invoke 命令的标志变量
var (
	invokeHandler  string   // 处理器名称或模块路径
	invokeData     string   // 请求体
	invokeFile     string   // 请求体文件
	invokeMethod   string   // 请求方法
	invokePath     string   // 请求路径
	invokeQuery    []string // query 参数（key=value）
	invokeHeaders  []string // 请求头（key=value）
	invokeDebug    bool     // 是否请求调试模式
	invokeRedirect bool     // 是否重定向进程级全局日志器
	invokeContent  string   // 宿主内容目录
)

func init() {
	invokeCmd.Flags().StringVarP(&invokeHandler, "handler", "H", "echo", "处理器名称或 .wasm 模块路径")
	invokeCmd.Flags().StringVarP(&invokeData, "data", "d", "", "请求体")
	invokeCmd.Flags().StringVarP(&invokeFile, "file", "f", "", "从文件读取请求体（- 表示标准输入）")
	invokeCmd.Flags().StringVarP(&invokeMethod, "method", "X", "GET", "请求方法")
	invokeCmd.Flags().StringVar(&invokePath, "path", "/", "请求路径")
	invokeCmd.Flags().StringArrayVarP(&invokeQuery, "query", "q", nil, "query 参数（key=value，可重复）")
	invokeCmd.Flags().StringArrayVar(&invokeHeaders, "header", nil, "请求头（key=value，可重复）")
	invokeCmd.Flags().BoolVar(&invokeDebug, "debug", false, "请求调试模式（query.debug=true）")
	invokeCmd.Flags().BoolVar(&invokeRedirect, "redirect", false, "调用期间重定向进程级全局日志器")
	invokeCmd.Flags().StringVar(&invokeContent, "content-dir", "", "载入宿主的内容目录（覆盖 host.content_dir）")

	viper.BindPFlag("handler", invokeCmd.Flags().Lookup("handler"))
	rootCmd.AddCommand(invokeCmd)
}

// runInvoke 执行 invoke 命令
// 捕获的日志与结果通过 Printer 输出；非调试模式下调用失败时返回错误，使进程以非零状态退出
func runInvoke(cmd *cobra.Command, args []string) error {
	req, err := buildInvokeRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgFile == "" {
		// 单次调用只关心调用结局，平台日志默认只输出告警
		cfg.Logging = config.LoggingConfig{Level: "warn", Format: "text"}
	}
	logger, err := newPlatformLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := context.Background()
	resolved, err := resolveHandler(ctx, viper.GetString("handler"), cfg.Handler.Path, logger)
	if err != nil {
		return err
	}
	defer resolved.Close(ctx)

	if cmd.Flags().Changed("content-dir") {
		cfg.Host.ContentDir = invokeContent
	}
	hst, err := newHost(cfg.Host, logger)
	if err != nil {
		return err
	}

	hs := harness.New(resolved.name, resolved.handler,
		harness.WithLogger(logger),
		harness.WithHost(hst),
		harness.WithOptions(wrapper.Options{Redirect: invokeRedirect}),
	)
	res, inv := hs.Invoke(ctx, req)

	if err := NewPrinter(cmd.OutOrStdout()).PrintResult(res, inv); err != nil {
		return err
	}
	if !res.Debug {
		return res.Err()
	}
	return nil
}

// buildInvokeRequest 根据命令行标志构造请求
//
// 参数:
//   - stdin: --file - 时读取的输入
//
// 返回:
//   - *domain.HTTPRequest: 请求
//   - error: 方法非法、参数格式错误或读取请求体失败
func buildInvokeRequest(stdin io.Reader) (*domain.HTTPRequest, error) {
	method, err := domain.ParseHTTPMethod(invokeMethod)
	if err != nil {
		return nil, err
	}
	req := &domain.HTTPRequest{Method: method, Path: invokePath}

	for _, kv := range invokeQuery {
		key, value, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("invalid --query: %w", err)
		}
		if req.Query == nil {
			req.Query = make(map[string]domain.Value)
		}
		req.Query[key] = domain.ParseValue(value)
	}
	if invokeDebug {
		if req.Query == nil {
			req.Query = make(map[string]domain.Value)
		}
		req.Query[domain.DebugQueryKey] = domain.BoolValue(true)
	}

	for _, kv := range invokeHeaders {
		key, value, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("invalid --header: %w", err)
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers[strings.ToLower(key)] = value
	}

	body := invokeData
	switch {
	case invokeFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		body = string(data)
	case invokeFile != "":
		data, err := os.ReadFile(invokeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		body = string(data)
	}
	if body != "" {
		v := domain.ParseValue(body)
		req.Body = &v
	}

	req.Normalize()
	return req, nil
}

// splitPair 解析 key=value 形式的参数
func splitPair(kv string) (string, string, error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", kv)
	}
	return parts[0], parts[1], nil
}
