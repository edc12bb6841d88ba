package middleware

import (
	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

// LoggerOptions 访问日志中间件配置。
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions 创建默认访问日志配置。
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/healthz", "/metrics"},
	}
}

// AddFlags 添加命令行标志。
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip logging.")
}

// TracingOptions HTTP 追踪中间件配置。
type TracingOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTracingOptions 创建默认追踪中间件配置。
func NewTracingOptions() *TracingOptions {
	return &TracingOptions{
		SkipPaths: []string{"/", "/healthz", "/metrics"},
	}
}

// AddFlags 添加命令行标志。
func (o *TracingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.tracing.skip-paths", o.SkipPaths, "Paths to skip tracing.")
}
