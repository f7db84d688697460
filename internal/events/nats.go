// Package events 提供调用事件的发布与订阅。
// 当前实现基于 NATS JetStream，每次调用结束后发布 invocation.<handler>.completed 事件。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/oriys/edgeharness/internal/domain"
)

// 事件类型与默认流配置
const (
	TypeInvocationCompleted = "invocation.completed"
	DefaultStream           = "INVOCATIONS"
	DefaultSubjectPrefix    = "invocation"
	eventSource             = "edgeharness"
)

// EventBus 封装 NATS/JetStream 连接与常用发布/订阅操作。
type EventBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *logrus.Logger
}

// Event 表示调用事件（JSON 格式）。
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventHandler 定义事件处理回调。
type EventHandler func(event *Event) error

// Options 是事件总线的连接配置。
type Options struct {
	// URL NATS 服务地址
	URL string
	// Stream JetStream 流名称，为空时使用 DefaultStream
	Stream string
	// SubjectPrefix 事件主题前缀，为空时使用 DefaultSubjectPrefix
	SubjectPrefix string
	// MaxAge 事件保留时长，为 0 时保留 1 天
	MaxAge time.Duration
}

// NewEventBus 创建 EventBus 并初始化所需的 JetStream Stream。
func NewEventBus(opts Options, logger *logrus.Logger) (*EventBus, error) {
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = DefaultSubjectPrefix
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 24 * time.Hour
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(eventSource),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:     opts.Stream,
		Subjects: []string{opts.SubjectPrefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   opts.MaxAge,
	}
	if _, err := js.AddStream(cfg); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		// Stream 已存在但配置不同
		if _, err := js.UpdateStream(cfg); err != nil {
			logger.WithError(err).WithField("stream", cfg.Name).Warn("Failed to ensure stream")
		}
	}

	return &EventBus{conn: nc, js: js, prefix: opts.SubjectPrefix, logger: logger}, nil
}

// Close 关闭底层 NATS 连接。
func (eb *EventBus) Close() error {
	eb.conn.Close()
	return nil
}

// Publish 发布事件到其 subject。
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := eb.js.Publish(event.Subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.WithFields(logrus.Fields{
		"subject":  event.Subject,
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("Event published")
	return nil
}

// Subscribe 订阅匹配 subject 的事件（支持通配符），subject 为空时订阅全部调用事件。
// ctx 取消时将自动取消订阅。
func (eb *EventBus) Subscribe(ctx context.Context, subject string, handler EventHandler) error {
	if subject == "" {
		subject = eb.prefix + ".>"
	}
	sub, err := eb.js.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			eb.logger.WithError(err).Error("Failed to unmarshal event")
			msg.Term()
			return
		}
		if err := handler(&event); err != nil {
			eb.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to handle event")
			msg.Nak()
			return
		}
		msg.Ack()
	}, nats.DeliverNew(), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return nil
}

// PublishInvocationCompleted 发布“调用完成”事件。
func (eb *EventBus) PublishInvocationCompleted(ctx context.Context, inv *domain.Invocation) error {
	event, err := NewInvocationEvent(eb.prefix, inv)
	if err != nil {
		return err
	}
	return eb.Publish(ctx, event)
}

// NewInvocationEvent 构造调用完成事件。
// 主题为 <prefix>.<handler>.completed，处理器名称中的 "." 与空白替换为 "_"。
func NewInvocationEvent(prefix string, inv *domain.Invocation) (*Event, error) {
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invocation: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	ts := inv.StartedAt
	if inv.CompletedAt != nil {
		ts = *inv.CompletedAt
	}
	return &Event{
		ID:        inv.ID,
		Type:      TypeInvocationCompleted,
		Source:    eventSource,
		Subject:   fmt.Sprintf("%s.%s.completed", prefix, subjectToken(inv.Handler)),
		Data:      data,
		Timestamp: ts,
	}, nil
}

// subjectToken 把任意名称转换为合法的单个 NATS 主题片段。
func subjectToken(name string) string {
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}
