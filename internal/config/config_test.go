package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/edgeharness/internal/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestLoad_Defaults 测试未设置的配置项填充默认值。
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  http_port: 9000\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.Server.HTTPPort)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second || cfg.Server.RequestTimeout != time.Minute ||
		cfg.Server.FailureStatus != 500 || cfg.Server.HistorySize != 100 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Handler.Name != "echo" || cfg.Capture.Level != "debug" {
		t.Errorf("handler = %+v capture = %+v", cfg.Handler, cfg.Capture)
	}
	if cfg.Events.Stream != "INVOCATIONS" || cfg.Metrics.Namespace != "edgeharness" {
		t.Errorf("events = %+v metrics = %+v", cfg.Events, cfg.Metrics)
	}
}

// TestLoad_HandlerPathImpliesWasm 测试配置模块路径时默认使用 wasm 处理器。
func TestLoad_HandlerPathImpliesWasm(t *testing.T) {
	cfg, err := Load(writeConfig(t, "handler:\n  path: ./app.wasm\n  watch: true\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Handler.Name != "wasm" || !cfg.Handler.Watch {
		t.Errorf("handler = %+v", cfg.Handler)
	}
}

// TestLoad_HostBalances 测试宿主余额配置的解析。
func TestLoad_HostBalances(t *testing.T) {
	cfg, err := Load(writeConfig(t, `host:
  content_dir: ./content
  balances:
    - account: abcd
      amount: "1000"
    - account: abcd
      kind: bandwidth
      amount: "42"
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host.ContentDir != "./content" || cfg.Host.BlockSize != 64*1024 {
		t.Errorf("host = %+v", cfg.Host)
	}

	account, kind, amount, err := cfg.Host.Balances[1].Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if account.String() != "abcd" || kind != "bandwidth" || amount.Int64() != 42 {
		t.Errorf("balance = %s %s %v", account, kind, amount)
	}
	if _, kind, _, _ := cfg.Host.Balances[0].Parse(); kind != "flk" {
		t.Errorf("default kind = %q, want flk", kind)
	}
}

// TestLoad_Invalid 测试非法取值与解析失败。
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "failure status", content: "server:\n  failure_status: 200\n"},
		{name: "history size", content: "server:\n  history_size: -1\n"},
		{name: "auth without keys", content: "auth:\n  enabled: true\n"},
		{name: "auth bad hash", content: "auth:\n  enabled: true\n  key_hashes: [nothex]\n"},
		{name: "block size", content: "host:\n  block_size: -1\n"},
		{name: "balance account", content: "host:\n  balances:\n    - {account: zz, amount: \"1\"}\n"},
		{name: "balance kind", content: "host:\n  balances:\n    - {account: ab, kind: gold, amount: \"1\"}\n"},
		{name: "balance amount", content: "host:\n  balances:\n    - {account: ab, amount: \"-5\"}\n"},
		{name: "capture level", content: "capture:\n  level: verbose\n"},
		{name: "sample rate", content: "telemetry:\n  sample_rate: 2\n"},
		{name: "yaml", content: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

// TestEnvOverrides 测试环境变量与 _FILE 覆盖。
func TestEnvOverrides(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "nats")
	if err := os.WriteFile(secret, []byte("nats://from-file:4222\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("EDGEHARNESS_NATS_URL", "nats://from-env:4222")
	t.Setenv("EDGEHARNESS_NATS_URL_FILE", secret)
	t.Setenv("EDGEHARNESS_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("EDGEHARNESS_HANDLER_PATH", "/srv/handler.wasm")
	t.Setenv("EDGEHARNESS_API_KEY", "eh_secret")

	cfg := Default()
	if cfg.Events.NatsURL != "nats://from-file:4222" {
		t.Errorf("NatsURL = %q, _FILE should win", cfg.Events.NatsURL)
	}
	if cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("Endpoint = %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Handler.Path != "/srv/handler.wasm" || cfg.Handler.Name != "wasm" {
		t.Errorf("handler = %+v", cfg.Handler)
	}
	if !cfg.Auth.Enabled || len(cfg.Auth.KeyHashes) != 1 || cfg.Auth.KeyHashes[0] != auth.HashAPIKey("eh_secret") {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}
