// Package options defines the generic options interface and common utilities.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 用 "." 连接前缀并在非空时追加结尾的 "."，
// 例如 Join("cache") + "redis.host" 得到 "cache.redis.host"。
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions is implemented by every options group under pkg/options.
type IOptions interface {
	// AddFlags registers the group's flags, namespaced by prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
	// Validate reports every invalid field; the caller aggregates them.
	Validate() []error
	// Complete fills derived values before validation.
	Complete() error
}
