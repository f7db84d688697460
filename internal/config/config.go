// Package config 提供了执行框架的配置管理功能。
// 该包负责从 YAML 配置文件加载配置，填充默认值，并支持通过环境变量覆盖部署相关的配置项。
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/edgeharness/internal/auth"
	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/host"
)

// EnvPrefix 是环境变量覆盖使用的前缀。
const EnvPrefix = "EDGEHARNESS"

// Config 是应用程序的主配置结构体，包含所有子系统的配置。
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server"`
	// Handler 处理器来源配置
	Handler HandlerConfig `yaml:"handler"`
	// Capture 诊断捕获配置
	Capture CaptureConfig `yaml:"capture"`
	// Host 本地宿主数据配置
	Host HostConfig `yaml:"host"`
	// Auth 控制接口认证配置
	Auth AuthConfig `yaml:"auth"`
	// Events 事件配置，包括 NATS 连接信息
	Events EventsConfig `yaml:"events"`
	// Logging 平台日志配置
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig 服务器配置结构体。
type ServerConfig struct {
	// HTTPPort HTTP 服务端口
	// 默认值：8080
	HTTPPort int `yaml:"http_port"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：30 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RequestTimeout 单个请求的超时时间，超时后处理器上下文被取消
	// 默认值：60 秒
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// FailureStatus 非调试模式下调用失败时使用的 HTTP 状态码
	// 默认值：500
	FailureStatus int `yaml:"failure_status"`
	// HistorySize 保留的最近调用记录条数
	// 默认值：100
	HistorySize int `yaml:"history_size"`
}

// HandlerConfig 处理器来源配置结构体。
type HandlerConfig struct {
	// Name 处理器名称，可以是内置处理器（echo、fail、content、balance）或 "wasm"
	// 默认值：Path 非空时为 wasm，否则为 echo
	Name string `yaml:"name"`
	// Path WebAssembly 模块路径
	Path string `yaml:"path"`
	// Watch 是否监听模块文件变化并热加载
	Watch bool `yaml:"watch"`
}

// CaptureConfig 诊断捕获配置结构体。
type CaptureConfig struct {
	// Level 最低日志级别，当前仅随配置携带，不参与过滤
	// 默认值：debug
	Level string `yaml:"level"`
	// Redirect 是否在调用期间重定向进程级全局日志器
	Redirect bool `yaml:"redirect"`
}

// HostConfig 本地内存宿主的初始数据配置。
type HostConfig struct {
	// ContentDir 内容目录，目录下每个文件以其 SHA-256 作为内容标识载入
	ContentDir string `yaml:"content_dir"`
	// BlockSize 内容分块大小（字节）
	// 默认值：65536
	BlockSize int `yaml:"block_size"`
	// Balances 初始账户余额
	Balances []BalanceConfig `yaml:"balances"`
}

// BalanceConfig 单条账户余额配置。
type BalanceConfig struct {
	// Account 十六进制账户标识
	Account string `yaml:"account"`
	// Kind 余额类型，可选值：flk、bandwidth
	// 默认值：flk
	Kind string `yaml:"kind"`
	// Amount 十进制余额
	Amount string `yaml:"amount"`
}

// AuthConfig 控制接口认证配置结构体。
type AuthConfig struct {
	// Enabled 是否要求控制接口携带 API Key
	Enabled bool `yaml:"enabled"`
	// Header 传递 API Key 的请求头
	// 默认值：X-API-Key
	Header string `yaml:"header"`
	// KeyHashes API Key 的 SHA-256 哈希值列表，由 apikey 命令生成
	KeyHashes []string `yaml:"key_hashes"`
}

// EventsConfig 事件配置结构体。
type EventsConfig struct {
	// NatsURL NATS 消息服务器 URL，为空时不发布事件
	NatsURL string `yaml:"nats_url"`
	// Stream JetStream 流名称
	// 默认值：INVOCATIONS
	Stream string `yaml:"stream"`
	// SubjectPrefix 事件主题前缀
	// 默认值：invocation
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig 日志配置结构体。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
type MetricsConfig struct {
	// Enabled 是否暴露 /metrics
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	// 默认值：edgeharness
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig 遥测配置结构体。
type TelemetryConfig struct {
	// Enabled 是否启用遥测
	Enabled bool `yaml:"enabled"`
	// Endpoint OTLP 端点地址
	// 默认值：localhost:4317
	Endpoint string `yaml:"endpoint"`
	// ServiceName 服务名称，用于追踪标识
	// 默认值：edgeharness
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，范围 0.0 到 1.0
	// 默认值：0.1
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 环境标识
	// 默认值：development
	Environment string `yaml:"environment"`
}

// Default 返回仅包含默认值的配置（同样应用环境变量覆盖）。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Load 从指定路径加载 YAML 配置文件。
//
// 参数：
//   - path: 配置文件的路径
//
// 返回值：
//   - *Config: 加载并处理后的配置对象
//   - error: 读取、解析或校验失败时返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置取值。
func (c *Config) Validate() error {
	if c.Server.FailureStatus < 400 || c.Server.FailureStatus > 599 {
		return fmt.Errorf("server.failure_status must be within 400-599, got %d", c.Server.FailureStatus)
	}
	if c.Server.HistorySize < 0 {
		return fmt.Errorf("server.history_size must not be negative, got %d", c.Server.HistorySize)
	}
	if c.Host.BlockSize < 0 {
		return fmt.Errorf("host.block_size must not be negative, got %d", c.Host.BlockSize)
	}
	for i, b := range c.Host.Balances {
		if _, _, _, err := b.Parse(); err != nil {
			return fmt.Errorf("host.balances[%d]: %w", i, err)
		}
	}
	if c.Auth.Enabled {
		keys, err := auth.NewStaticKeys(c.Auth.KeyHashes)
		if err != nil {
			return fmt.Errorf("auth.key_hashes: %w", err)
		}
		if keys.Len() == 0 {
			return fmt.Errorf("auth.enabled requires at least one key hash")
		}
	}
	if _, err := domain.ParseLogLevel(c.Capture.Level); err != nil {
		return fmt.Errorf("capture.level: %w", err)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within 0-1, got %v", c.Telemetry.SampleRate)
	}
	return nil
}

// Parse 解析余额配置。
func (b BalanceConfig) Parse() (host.Account, host.BalanceKind, *big.Int, error) {
	account, err := host.ParseAccount(b.Account)
	if err != nil {
		return nil, "", nil, err
	}
	kind := host.BalanceFLK
	if b.Kind != "" {
		if kind, err = host.ParseBalanceKind(b.Kind); err != nil {
			return nil, "", nil, err
		}
	}
	amount, ok := new(big.Int).SetString(b.Amount, 10)
	if !ok || !host.ValidBalance(amount) {
		return nil, "", nil, fmt.Errorf("%w: %q", domain.ErrBalanceOverflow, b.Amount)
	}
	return account, kind, amount, nil
}

// applyEnvOverrides 应用环境变量覆盖。
// 支持直接设置环境变量（如 EDGEHARNESS_NATS_URL），或通过 _FILE 后缀
// 指定包含取值的文件路径（如 EDGEHARNESS_NATS_URL_FILE），_FILE 方式优先级更高。
func (c *Config) applyEnvOverrides() {
	if v := readEnvOrFile("NATS_URL"); v != "" {
		c.Events.NatsURL = v
	}
	if v := readEnvOrFile("OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := readEnvOrFile("API_KEY"); v != "" {
		c.Auth.Enabled = true
		c.Auth.KeyHashes = append(c.Auth.KeyHashes, auth.HashAPIKey(v))
	}
	if v := readEnvOrFile("CONTENT_DIR"); v != "" {
		c.Host.ContentDir = v
	}
	if v := readEnvOrFile("HANDLER_PATH"); v != "" {
		c.Handler.Path = v
		if c.Handler.Name == "" || c.Handler.Name == "echo" {
			c.Handler.Name = "wasm"
		}
	}
}

// readEnvOrFile 读取 EDGEHARNESS_<key>_FILE 指向的文件或 EDGEHARNESS_<key> 的值。
func readEnvOrFile(key string) string {
	return readEnvOrFileAny(
		[]string{EnvPrefix + "_" + key},
		[]string{EnvPrefix + "_" + key + "_FILE"},
	)
}

// readEnvOrFileAny 从环境变量或文件读取配置值。
// 优先从 fileKeys 指定的文件路径读取，如果文件不存在或读取失败，
// 则从 envKeys 指定的环境变量读取。
func readEnvOrFileAny(envKeys []string, fileKeys []string) string {
	for _, fileKey := range fileKeys {
		if filePath := strings.TrimSpace(os.Getenv(fileKey)); filePath != "" {
			if b, err := os.ReadFile(filePath); err == nil {
				return strings.TrimSpace(string(b))
			}
		}
	}

	for _, envKey := range envKeys {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v
		}
	}

	return ""
}

// applyDefaults 应用默认配置值。
func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.FailureStatus == 0 {
		c.Server.FailureStatus = 500
	}
	if c.Server.HistorySize == 0 {
		c.Server.HistorySize = 100
	}
	if c.Handler.Name == "" {
		if c.Handler.Path != "" {
			c.Handler.Name = "wasm"
		} else {
			c.Handler.Name = "echo"
		}
	}
	if c.Host.BlockSize == 0 {
		c.Host.BlockSize = host.DefaultBlockSize
	}
	if c.Auth.Header == "" {
		c.Auth.Header = auth.DefaultAPIKeyHeader
	}
	if c.Capture.Level == "" {
		c.Capture.Level = string(domain.LogLevelDebug)
	}
	if c.Events.Stream == "" {
		c.Events.Stream = "INVOCATIONS"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "invocation"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "edgeharness"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "edgeharness"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
