// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 apikey 命令，生成控制接口使用的 API Key。
package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/oriys/edgeharness/internal/auth"
)

// apikeyCmd 生成一个新的 API Key 及其哈希值
var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key for the control endpoints",
	Long: `生成一个新的 API Key。

原始 Key 只显示一次，交给调用方；哈希值写入配置文件的 auth.key_hashes，
或者直接通过 EDGEHARNESS_API_KEY 环境变量提供原始 Key。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, hash, err := auth.GenerateAPIKey()
		if err != nil {
			return fmt.Errorf("failed to generate api key: %w", err)
		}

		p := NewPrinter(cmd.OutOrStdout())
		switch p.format {
		case "json":
			return p.printJSON(map[string]string{"key": key, "hash": hash})
		case "yaml":
			return p.printYAML(map[string]string{"key": key, "hash": hash})
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Property", "Value")
		table.Append([]string{"API Key", key})
		table.Append([]string{"Hash", hash})
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
}
