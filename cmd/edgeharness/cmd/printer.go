// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现输出格式化打印功能，支持多种输出格式。
//
// Printer 支持以下输出格式：
//   - table: 表格格式（默认），适合人类阅读
//   - json:  JSON 格式，与 HTTP 传输形式一致
//   - yaml:  YAML 格式
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/events"
	"github.com/oriys/edgeharness/internal/harness"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// Printer 是格式化输出的处理器。
type Printer struct {
	format string    // 输出格式：table、json 或 yaml
	writer io.Writer // 输出目标
}

// NewPrinter 创建一个新的 Printer 实例。
// 从 viper 配置中读取 output 格式，如果未配置则默认使用 table 格式。
func NewPrinter(w io.Writer) *Printer {
	format := viper.GetString("output")
	if format == "" {
		format = "table"
	}
	return &Printer{format: format, writer: w}
}

// PrintResult 打印一次调用的结局。
// json 与 yaml 格式输出调用结局的传输形式；table 格式输出调用摘要、捕获的日志以及结果或错误。
//
// 参数：
//   - res: 调用结局
//   - inv: 调用记录
//
// 返回值：
//   - error: 打印失败时返回错误信息
func (p *Printer) PrintResult(res *wrapper.Result, inv *domain.Invocation) error {
	switch p.format {
	case "json":
		return p.printJSON(res.Envelope())
	case "yaml":
		return p.printYAML(res.Envelope())
	default:
		return p.printResultDetail(res, inv)
	}
}

// PrintHandlers 打印内置处理器列表。
func (p *Printer) PrintHandlers(names []string) error {
	switch p.format {
	case "json":
		return p.printJSON(names)
	case "yaml":
		return p.printYAML(names)
	}

	table := tablewriter.NewWriter(p.writer)
	table.Header("Handler")
	for _, name := range names {
		if err := table.Append([]string{name}); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintEvent 打印一条调用事件。
// 事件以流的形式到达，json 格式每行一个事件，table 格式每行一条摘要。
func (p *Printer) PrintEvent(event *events.Event) error {
	switch p.format {
	case "json":
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.writer, string(data))
		return err
	case "yaml":
		if _, err := fmt.Fprintln(p.writer, "---"); err != nil {
			return err
		}
		return p.printYAML(event)
	}

	var inv domain.Invocation
	if err := json.Unmarshal(event.Data, &inv); err != nil {
		return fmt.Errorf("failed to decode event %s: %w", event.ID, err)
	}
	_, err := fmt.Fprintf(p.writer, "%s  %-40s  %s  %s %s  %dms\n",
		event.Timestamp.Format(time.RFC3339),
		event.Subject,
		colorStatus(string(inv.Status)),
		inv.Method,
		inv.Path,
		inv.DurationMs,
	)
	return err
}

// printJSON 以 JSON 格式输出数据。
// 使用 2 空格缩进美化输出。
func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML 以 YAML 格式输出数据。
// 数据先经过 JSON 编码，使自定义的 JSON 形状（调试包装、响应头等）在 YAML 中保持一致。
func (p *Printer) printYAML(v interface{}) error {
	plain, err := toPlain(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return err
	}
	return enc.Close()
}

// printResultDetail 以详细格式输出调用结局。
func (p *Printer) printResultDetail(res *wrapper.Result, inv *domain.Invocation) error {
	mode := "plain"
	if res.Debug {
		mode = "debug"
	}

	summary := tablewriter.NewWriter(p.writer)
	summary.Header("Property", "Value")
	rows := [][]string{
		{"Invocation ID", inv.ID},
		{"Handler", inv.Handler},
		{"Request", fmt.Sprintf("%s %s", inv.Method, inv.Path)},
		{"Status", colorStatus(string(inv.Status))},
		{"Mode", mode},
		{"Duration", res.Duration.Round(time.Microsecond).String()},
		{"Logs", fmt.Sprintf("%d", len(res.Logs))},
	}
	if res.Panicked {
		rows = append(rows, []string{"Panicked", "Yes"})
	}
	if !res.Success {
		rows = append(rows, []string{"Error", harness.Describe(res.Error)})
	}
	for _, row := range rows {
		if err := summary.Append(row); err != nil {
			return err
		}
	}
	if err := summary.Render(); err != nil {
		return err
	}

	if len(res.Logs) > 0 {
		fmt.Fprintln(p.writer, "\nLogs:")
		logs := tablewriter.NewWriter(p.writer)
		logs.Header("Time", "Level", "Message")
		for _, rec := range res.Logs {
			if err := logs.Append([]string{rec.Timestamp, colorLevel(rec.Level), formatMessage(rec.Message)}); err != nil {
				return err
			}
		}
		if err := logs.Render(); err != nil {
			return err
		}
	}

	label, body := "Result", res.Value
	if !res.Success {
		label, body = "Error", res.Error
	}
	if body == nil {
		return nil
	}
	fmt.Fprintf(p.writer, "\n%s:\n", label)
	data, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintf(p.writer, "%v\n", body)
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Fprintln(p.writer, string(data))
		return nil
	}
	fmt.Fprintln(p.writer, pretty.String())
	return nil
}

// ====== 辅助函数 ======

// toPlain 把任意值转换为仅由基本类型、切片和映射组成的值。
func toPlain(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}

// formatMessage 把日志参数拼接为一行文本。
// 字符串原样输出，其他值以 JSON 形式输出。
func formatMessage(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if s, ok := arg.(string); ok {
			parts = append(parts, s)
			continue
		}
		data, err := json.Marshal(arg)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%v", arg))
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, " ")
}

// colorStatus 根据状态值返回带颜色的字符串。
// 使用 ANSI 转义序列：
//   - 绿色: success
//   - 黄色: running
//   - 红色: failed
func colorStatus(status string) string {
	switch strings.ToLower(status) {
	case "success":
		return "\033[32m" + status + "\033[0m" // Green
	case "running":
		return "\033[33m" + status + "\033[0m" // Yellow
	case "failed":
		return "\033[31m" + status + "\033[0m" // Red
	default:
		return status
	}
}

// colorLevel 返回带颜色的日志级别。
func colorLevel(level domain.LogLevel) string {
	switch level {
	case domain.LogLevelWarn:
		return "\033[33m" + string(level) + "\033[0m"
	case domain.LogLevelError:
		return "\033[31m" + string(level) + "\033[0m"
	default:
		return string(level)
	}
}
