package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

// RequestIDOptions RequestID 中间件配置。
type RequestIDOptions struct {
	// Header 请求 ID 头名称。
	Header string `json:"header" mapstructure:"header"`
	// GeneratorType ID 生成器类型：ulid（默认）或 hex。
	GeneratorType string `json:"generator-type" mapstructure:"generator-type"`
}

// NewRequestIDOptions 创建默认 RequestID 配置。
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{
		Header:        "X-Request-ID",
		GeneratorType: "ulid",
	}
}

// AddFlags 添加命令行标志。
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Header, options.Join(prefixes...)+"middleware.request-id.header", o.Header, "Request ID header name.")
	fs.StringVar(&o.GeneratorType, options.Join(prefixes...)+"middleware.request-id.generator", o.GeneratorType, "ID generator type: ulid or hex.")
}

// Validate 验证配置。
func (o *RequestIDOptions) Validate() []error {
	var errs []error
	if o.Header == "" {
		errs = append(errs, errors.New("request ID header name is required"))
	}
	switch o.GeneratorType {
	case "ulid", "hex", "":
	default:
		errs = append(errs, errors.New("invalid generator type: must be 'ulid' or 'hex'"))
	}
	return errs
}
