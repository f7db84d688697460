// Package cmd 包含 edgeharness CLI 工具的所有命令实现
// 使用 cobra 框架构建命令行接口
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oriys/edgeharness/internal/config"
)

// 全局命令行标志变量
var (
	cfgFile   string // 配置文件路径
	outputFmt string // 输出格式（table/json/yaml）
)

// rootCmd 是 CLI 的根命令
// 所有子命令都挂载在这个根命令下
var rootCmd = &cobra.Command{
	Use:   "edgeharness",
	Short: "edgeharness - local runner for edge request handlers",
	Long: `edgeharness 在本地运行请求处理器，捕获处理器的诊断日志，
并在调试模式下以 {body:{success,result|error,logs}} 的形式返回。

使用示例:
  # 启动开发服务器，使用内置 echo 处理器
  edgeharness serve

  # 加载 WebAssembly 处理器并在文件变化时热加载
  edgeharness serve --handler ./handler.wasm --watch

  # 单次调用处理器并查看捕获的日志
  edgeharness invoke --handler echo --data '{"name": "World"}' --debug

  # 订阅调用完成事件
  edgeharness events --nats-url nats://localhost:4222`,
	SilenceUsage: true,
	// 错误由 main 输出到标准错误，标准输出只包含命令结果
	SilenceErrors: true,
}

// Execute 执行根命令
// 这是 CLI 的入口函数，由 main 包调用
//
// 返回:
//   - error: 命令执行错误
func Execute() error {
	return rootCmd.Execute()
}

// init 注册全局标志和配置初始化函数
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（YAML，默认使用内置默认值）")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "输出格式（table、json、yaml）")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 初始化 CLI 设置
// 按优先级读取：命令行标志 > 环境变量（EDGEHARNESS_<KEY>）> 默认值
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig 加载运行配置
// 指定了 --config 时从文件加载，否则使用默认值（同样应用环境变量覆盖）
//
// 返回:
//   - *config.Config: 运行配置
//   - error: 配置文件读取或校验失败
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found", cfgFile)
		}
		return nil, err
	}
	return cfg, nil
}
