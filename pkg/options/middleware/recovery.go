package middleware

import (
	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

// RecoveryOptions Recovery 中间件配置。
type RecoveryOptions struct {
	// EnableStackTrace 在错误响应中返回堆栈（仅限开发环境）。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions 创建默认 Recovery 配置。
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags 添加命令行标志。
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace, "Enable stack trace in error responses.")
}
