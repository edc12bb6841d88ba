// Package middleware provides middleware configuration options.
package middleware

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 中间件名称常量。
const (
	MiddlewareRecovery    = "recovery"
	MiddlewareRequestID   = "request-id"
	MiddlewareLogger      = "logger"
	MiddlewareTracing     = "tracing"
	MiddlewareCompression = "compression"
)

// Options 中间件配置。
type Options struct {
	// Middleware 指定中间件的应用顺序，未列出的中间件不启用。
	Middleware []string `json:"enabled" mapstructure:"enabled"`

	Recovery    *RecoveryOptions    `json:"recovery" mapstructure:"recovery"`
	RequestID   *RequestIDOptions   `json:"request-id" mapstructure:"request-id"`
	Logger      *LoggerOptions      `json:"logger" mapstructure:"logger"`
	Tracing     *TracingOptions     `json:"tracing" mapstructure:"tracing"`
	Compression *CompressionOptions `json:"compression" mapstructure:"compression"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Middleware: []string{
			MiddlewareRecovery,
			MiddlewareRequestID,
			MiddlewareLogger,
			MiddlewareTracing,
			MiddlewareCompression,
		},
		Recovery:    NewRecoveryOptions(),
		RequestID:   NewRequestIDOptions(),
		Logger:      NewLoggerOptions(),
		Tracing:     NewTracingOptions(),
		Compression: NewCompressionOptions(),
	}
}

// IsEnabled 判断中间件是否在启用列表中。
func (o *Options) IsEnabled(name string) bool {
	for _, m := range o.Middleware {
		if m == name {
			return true
		}
	}
	return false
}

// AddFlags 添加中间件配置的命令行标志。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Middleware, options.Join(prefixes...)+"middleware.enabled", o.Middleware, "Ordered list of enabled middleware.")
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.Tracing.AddFlags(fs, prefixes...)
	o.Compression.AddFlags(fs, prefixes...)
}

// Validate 验证中间件配置。
func (o *Options) Validate() []error {
	var errs []error
	for _, m := range o.Middleware {
		switch m {
		case MiddlewareRecovery, MiddlewareRequestID, MiddlewareLogger, MiddlewareTracing, MiddlewareCompression:
		default:
			errs = append(errs, fmt.Errorf("middleware: unknown middleware %q", m))
		}
	}
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.Compression.Validate()...)
	return errs
}

// Complete 填充默认值。
func (o *Options) Complete() error {
	if o.Recovery == nil {
		o.Recovery = NewRecoveryOptions()
	}
	if o.RequestID == nil {
		o.RequestID = NewRequestIDOptions()
	}
	if o.Logger == nil {
		o.Logger = NewLoggerOptions()
	}
	if o.Tracing == nil {
		o.Tracing = NewTracingOptions()
	}
	if o.Compression == nil {
		o.Compression = NewCompressionOptions()
	}
	return o.Compression.Complete()
}
