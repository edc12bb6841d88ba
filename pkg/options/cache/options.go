// Package cache provides result cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
	redisopts "github.com/overlordausritter/beastgpt/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 查询结果缓存配置，默认关闭。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:   false,
		TTL:       10 * time.Minute,
		KeyPrefix: "llamaquery:",
		Redis:     redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Cache successful query responses in Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Cache TTL duration.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Cache key prefix.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
	}
	if o.Redis == nil {
		return append(errs, fmt.Errorf("cache.redis is required when the cache is enabled"))
	}
	return append(errs, o.Redis.Validate()...)
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
