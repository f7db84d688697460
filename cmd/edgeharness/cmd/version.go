// Package cmd 提供 edgeharness 命令行工具的所有子命令实现。
// 本文件实现 version 命令，用于显示版本信息。
//
// 版本信息在编译时通过 -ldflags 注入。
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// 版本信息变量，在构建时通过 ldflags 设置。
// 例如: go build -ldflags "-X github.com/oriys/edgeharness/cmd/edgeharness/cmd.Version=1.0.0"
var (
	// Version 是版本号，默认为 "dev" 表示开发版本
	Version = "dev"
	// GitCommit 是构建时的 Git 提交哈希
	GitCommit = "unknown"
	// BuildDate 是构建日期
	BuildDate = "unknown"
)

// versionCmd 显示版本和构建信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "edgeharness version %s\n", Version)
		fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Build date: %s\n", BuildDate)
		fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
