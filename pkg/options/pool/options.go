// Package pool provides worker pool configuration options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 检索工作池配置。
type Options struct {
	Capacity         int           `json:"capacity" mapstructure:"capacity"`
	ExpiryDuration   time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	PreAlloc         bool          `json:"pre-alloc" mapstructure:"pre-alloc"`
	Nonblocking      bool          `json:"nonblocking" mapstructure:"nonblocking"`
	MaxBlockingTasks int           `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
	ReleaseTimeout   time.Duration `json:"release-timeout" mapstructure:"release-timeout"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	d := pool.DefaultConfig()
	return &Options{
		Capacity:         d.Capacity,
		ExpiryDuration:   d.ExpiryDuration,
		PreAlloc:         d.PreAlloc,
		Nonblocking:      d.Nonblocking,
		MaxBlockingTasks: d.MaxBlockingTasks,
		ReleaseTimeout:   10 * time.Second,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Maximum concurrent upstream calls.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.PreAlloc, p+"pre-alloc", o.PreAlloc, "Pre-allocate the worker queue.")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Reject submissions immediately when the pool is full.")
	fs.IntVar(&o.MaxBlockingTasks, p+"max-blocking-tasks", o.MaxBlockingTasks, "Maximum queued submissions when blocking (0 = unlimited).")
	fs.DurationVar(&o.ReleaseTimeout, p+"release-timeout", o.ReleaseTimeout, "Time to drain running tasks on shutdown.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	var errs []error
	if err := o.Config().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pool: %w", err))
	}
	if o.ReleaseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pool.release-timeout must be positive"))
	}
	return errs
}

// Complete completes the pool options with defaults.
func (o *Options) Complete() error {
	return nil
}

// Config 转换为 pool.Config。
func (o *Options) Config() *pool.Config {
	return &pool.Config{
		Capacity:         o.Capacity,
		ExpiryDuration:   o.ExpiryDuration,
		PreAlloc:         o.PreAlloc,
		Nonblocking:      o.Nonblocking,
		MaxBlockingTasks: o.MaxBlockingTasks,
	}
}
