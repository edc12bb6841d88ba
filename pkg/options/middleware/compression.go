package middleware

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

// CompressionOptions gzip 响应压缩配置。
// 响应体不足 MinSize 字节时原样返回；NDJSON 流在第一次写出时即确定是否压缩。
type CompressionOptions struct {
	Level     int      `json:"level" mapstructure:"level"`
	MinSize   int      `json:"min-size" mapstructure:"min-size"`
	Types     []string `json:"types" mapstructure:"types"`
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewCompressionOptions returns gzip at level 6 for bodies of 500 bytes or more.
func NewCompressionOptions() *CompressionOptions {
	return &CompressionOptions{
		Level:   6,
		MinSize: 500,
		Types: []string{
			"application/json",
			"application/x-ndjson",
			"text/plain",
		},
		SkipPaths: []string{"/healthz"},
	}
}

// AddFlags registers the middleware.compression.* flags.
func (o *CompressionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.compression."
	fs.IntVar(&o.Level, p+"level", o.Level, "Gzip level, 1 (fastest) to 9 (smallest).")
	fs.IntVar(&o.MinSize, p+"min-size", o.MinSize, "Responses smaller than this many bytes are sent uncompressed.")
	fs.StringSliceVar(&o.Types, p+"types", o.Types, "Content types eligible for compression.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths never compressed.")
}

// Validate checks the gzip level and size floor.
func (o *CompressionOptions) Validate() []error {
	var errs []error
	if o.Level < -1 || o.Level > 9 {
		errs = append(errs, fmt.Errorf("middleware.compression.level must be within [-1, 9], got %d", o.Level))
	}
	if o.MinSize < 0 {
		errs = append(errs, fmt.Errorf("middleware.compression.min-size must not be negative"))
	}
	if len(o.Types) == 0 {
		errs = append(errs, fmt.Errorf("middleware.compression.types must not be empty"))
	}
	return errs
}

// Complete maps the library default level (-1) to 6.
func (o *CompressionOptions) Complete() error {
	if o.Level == -1 {
		o.Level = 6
	}
	return nil
}
