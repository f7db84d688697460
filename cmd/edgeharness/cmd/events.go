// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 events 命令，订阅并打印调用完成事件。
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/edgeharness/internal/events"
)

// eventsCmd 是 events 命令的 cobra.Command 实例。
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow invocation events",
	Long: `订阅 NATS JetStream 上的调用完成事件，并持续打印直到按下 Ctrl+C。

Examples:
  # 订阅全部处理器的事件
  edgeharness events --nats-url nats://localhost:4222

  # 只订阅 echo 处理器，以 JSON 输出
  edgeharness events --subject 'invocation.echo.>' -o json`,
	RunE: runEvents,
}

// events 命令的标志变量
var (
	eventsNatsURL string // NATS 地址
	eventsSubject string // 订阅主题
)

func init() {
	eventsCmd.Flags().StringVar(&eventsNatsURL, "nats-url", "", "NATS 地址（覆盖 events.nats_url）")
	eventsCmd.Flags().StringVar(&eventsSubject, "subject", "", "订阅主题，支持通配符（默认订阅全部调用事件）")
	rootCmd.AddCommand(eventsCmd)
}

// runEvents 执行 events 命令
func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.Events.NatsURL = eventsNatsURL
	}
	if cfg.Events.NatsURL == "" {
		return fmt.Errorf("no NATS server configured, use --nats-url or events.nats_url")
	}

	logger, err := newPlatformLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	bus, err := events.NewEventBus(events.Options{
		URL:           cfg.Events.NatsURL,
		Stream:        cfg.Events.Stream,
		SubjectPrefix: cfg.Events.SubjectPrefix,
	}, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := NewPrinter(cmd.OutOrStdout())
	if err := bus.Subscribe(ctx, eventsSubject, printer.PrintEvent); err != nil {
		return err
	}
	logger.WithField("url", cfg.Events.NatsURL).Info("Following invocation events")

	<-ctx.Done()
	return nil
}
