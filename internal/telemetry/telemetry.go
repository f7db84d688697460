// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 追踪数据通过 OTLP gRPC 导出到兼容的后端（如 Tempo、Jaeger），
// 每次处理器调用对应一个 Span。
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultServiceName 是未配置服务名时使用的默认值。
const DefaultServiceName = "edgeharness"

// TracerName 是调用 Span 所属的追踪器名称。
const TracerName = "github.com/oriys/edgeharness"

// Config 定义遥测配置结构体。
type Config struct {
	// Enabled 控制是否启用遥测功能，设为 false 时使用空操作追踪器
	Enabled bool `yaml:"enabled"`
	// Endpoint 指定 OTLP 接收器的 gRPC 端点地址
	Endpoint string `yaml:"endpoint"` // e.g., localhost:4317
	// ServiceName 标识当前服务的名称
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，取值范围 0.0 到 1.0
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 标识当前运行环境
	Environment string `yaml:"environment"`
}

// Telemetry 封装了 OpenTelemetry 的追踪提供者。
type Telemetry struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New 根据给定配置创建新的 Telemetry 实例。
//
// 未启用时返回使用全局（默认空操作）追踪提供者的实例。启用时建立到 OTLP
// 接收器的 gRPC 连接，设置全局追踪提供者与 W3C 传播器。
//
// 参数：
//   - ctx: 上下文，用于控制导出器创建超时
//   - cfg: 遥测配置
//   - version: 服务版本，写入资源属性
//
// 返回：
//   - *Telemetry: 初始化完成的遥测实例
//   - error: 初始化过程中的错误
func New(ctx context.Context, cfg Config, version string) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if !cfg.Enabled {
		return &Telemetry{config: cfg, tracer: otel.Tracer(TracerName)}, nil
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 0.1
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter for %s: %w", cfg.Endpoint, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{config: cfg, tracerProvider: tp, tracer: tp.Tracer(TracerName)}, nil
}

// Tracer 返回用于创建 Span 的追踪器实例。
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// ServiceName 返回生效的服务名。
func (t *Telemetry) ServiceName() string {
	return t.config.ServiceName
}

// Shutdown 刷新待发送的追踪数据并释放资源。
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// IsEnabled 返回遥测功能是否已启用。
func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled
}

// TraceIDFromContext 从上下文中提取 Trace ID，上下文无有效 Span 时返回空字符串。
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// StartSpan 使用全局追踪提供者创建一个新的 Span。
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, opts...)
}

// EndSpan 根据调用结局设置 Span 状态并结束 Span。
// failure 非空时 Span 标记为错误，logCount 记录为属性。
func EndSpan(span trace.Span, failure string, logCount int) {
	span.SetAttributes(attribute.Int("edgeharness.log_count", logCount))
	if failure != "" {
		span.SetStatus(codes.Error, failure)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
