// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 serve 命令，在本地启动处理器的 HTTP 开发服务器。
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oriys/edgeharness/internal/api"
	"github.com/oriys/edgeharness/internal/auth"
	"github.com/oriys/edgeharness/internal/config"
	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/events"
	"github.com/oriys/edgeharness/internal/harness"
	"github.com/oriys/edgeharness/internal/metrics"
	"github.com/oriys/edgeharness/internal/telemetry"
	"github.com/oriys/edgeharness/internal/wasmhandler"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// serveCmd 是 serve 命令的 cobra.Command 实例。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a handler over HTTP",
	Long: `启动本地 HTTP 服务器，把每个请求交给处理器执行。

请求的 query 中 debug 为真时，调试包装 {body:...} 作为响应，客户端收到 {success,result|error,logs}；
否则成功时写出处理器结果，失败时以 server.failure_status 状态码写出错误值。

Examples:
  # 使用内置 echo 处理器
  edgeharness serve

  # 使用 WebAssembly 处理器并热加载
  edgeharness serve --handler ./handler.wasm --watch

  # 使用配置文件
  edgeharness serve --config ./edgeharness.yaml`,
	RunE: runServe,
}

// serve 命令的标志变量
var (
	servePort     int    // 服务端口
	serveHandler  string // 处理器名称或模块路径
	serveWatch    bool   // 是否监听模块文件变化
	serveRedirect bool   // 是否重定向进程级全局日志器
	serveNatsURL  string // NATS 地址
	serveContent  string // 宿主内容目录
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP 端口（覆盖 server.http_port）")
	serveCmd.Flags().StringVarP(&serveHandler, "handler", "H", "", "处理器名称或 .wasm 模块路径（覆盖 handler.name）")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "模块文件变化时热加载")
	serveCmd.Flags().BoolVar(&serveRedirect, "redirect", false, "调用期间重定向进程级全局日志器")
	serveCmd.Flags().StringVar(&serveNatsURL, "nats-url", "", "发布调用事件的 NATS 地址（覆盖 events.nats_url）")
	serveCmd.Flags().StringVar(&serveContent, "content-dir", "", "载入宿主的内容目录（覆盖 host.content_dir）")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags 用显式设置的命令行标志覆盖配置
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.HTTPPort = servePort
	}
	if flags.Changed("handler") {
		cfg.Handler.Name = serveHandler
	}
	if flags.Changed("watch") {
		cfg.Handler.Watch = serveWatch
	}
	if flags.Changed("redirect") {
		cfg.Capture.Redirect = serveRedirect
	}
	if flags.Changed("nats-url") {
		cfg.Events.NatsURL = serveNatsURL
	}
	if flags.Changed("content-dir") {
		cfg.Host.ContentDir = serveContent
	}
}

// runServe 执行 serve 命令
//
// 执行步骤：
//  1. 加载配置并应用命令行覆盖
//  2. 初始化平台日志、遥测、指标与事件发布
//  3. 解析处理器，必要时开始监听模块文件
//  4. 启动 HTTP 服务器并等待关闭信号
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	logger, err := newPlatformLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
		Environment: cfg.Telemetry.Environment,
	}, Version)
	if err != nil {
		// 遥测初始化失败不影响主服务运行
		logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
	} else if tel.IsEnabled() {
		defer tel.Shutdown(context.Background())
		logger.AddHook(telemetry.NewLogrusHook())
		logger.WithFields(logrus.Fields{
			"endpoint":    cfg.Telemetry.Endpoint,
			"sample_rate": cfg.Telemetry.SampleRate,
		}).Info("Telemetry initialized")
	}

	resolved, err := resolveHandler(ctx, cfg.Handler.Name, cfg.Handler.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to resolve handler: %w", err)
	}
	defer resolved.Close(context.Background())

	hst, err := newHost(cfg.Host, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize host: %w", err)
	}

	level, _ := domain.ParseLogLevel(cfg.Capture.Level)
	opts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithHost(hst),
		harness.WithOptions(wrapper.Options{
			Log:      wrapper.LogOptions{Level: level},
			Redirect: cfg.Capture.Redirect,
		}),
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, harness.WithMetrics(metrics.NewMetrics(cfg.Metrics.Namespace, registry)))
	}

	if cfg.Events.NatsURL != "" {
		bus, err := events.NewEventBus(events.Options{
			URL:           cfg.Events.NatsURL,
			Stream:        cfg.Events.Stream,
			SubjectPrefix: cfg.Events.SubjectPrefix,
		}, logger)
		if err != nil {
			// 事件发布是可选能力，连接失败时继续提供服务
			logger.WithError(err).Warn("Failed to connect to NATS, invocation events disabled")
		} else {
			defer bus.Close()
			opts = append(opts, harness.WithPublisher(bus))
			logger.WithField("url", cfg.Events.NatsURL).Info("Invocation events enabled")
		}
	}

	hs := harness.New(resolved.name, resolved.handler, opts...)
	handler := api.NewHandler(hs, logger, cfg.Server.FailureStatus, cfg.Server.HistorySize)

	if resolved.wasm != nil {
		wh := resolved.wasm
		handler.SetReadiness(func() error {
			if wh.Source() == "" {
				return wasmhandler.ErrNotLoaded
			}
			return nil
		})
		if cfg.Handler.Watch {
			if err := wh.Watch(ctx, resolved.path, nil); err != nil {
				return err
			}
			logger.WithField("source", resolved.path).Info("Watching wasm module for changes")
		}
	}

	routerCfg := &api.RouterConfig{
		Handler:        handler,
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		RequestTimeout: cfg.Server.RequestTimeout,
		AccessLog:      logger.IsLevelEnabled(logrus.DebugLevel),
	}
	if registry != nil {
		routerCfg.Gatherer = registry
	}
	if cfg.Auth.Enabled {
		// 配置已在加载时校验
		keys, _ := auth.NewStaticKeys(cfg.Auth.KeyHashes)
		routerCfg.Auth = auth.NewMiddleware(cfg.Auth.Header, keys, true)
		logger.WithField("keys", keys.Len()).Info("Control API authentication enabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Server.HTTPPort,
			"handler": resolved.name,
		}).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 监听 SIGINT (Ctrl+C) 和 SIGTERM (容器停止) 信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	logger.Info("Server stopped")
	return nil
}
