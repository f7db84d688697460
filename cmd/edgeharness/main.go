// Package main 是 edgeharness 命令行工具的入口点
// edgeharness 在本地运行处理器：启动开发服务器、单次调用处理器以及订阅调用事件
package main

import (
	"fmt"
	"os"

	"github.com/oriys/edgeharness/cmd/edgeharness/cmd"
)

// main 调用 cmd 包的 Execute 函数来解析和执行用户命令
func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
