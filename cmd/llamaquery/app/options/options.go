// Package options contains flags and options for initializing the query server.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/overlordausritter/beastgpt/internal/llamaquery"
	"github.com/overlordausritter/beastgpt/pkg/infra/app"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	cacheopts "github.com/overlordausritter/beastgpt/pkg/options/cache"
	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
	llamaopts "github.com/overlordausritter/beastgpt/pkg/options/llamacloud"
	llmopts "github.com/overlordausritter/beastgpt/pkg/options/llm"
	logopts "github.com/overlordausritter/beastgpt/pkg/options/logger"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
	poolopts "github.com/overlordausritter/beastgpt/pkg/options/pool"
	httpopts "github.com/overlordausritter/beastgpt/pkg/options/server/http"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// LlamaCloudOptions contains the managed index platform configuration.
	LlamaCloudOptions *llamaopts.Options `json:"llamacloud" mapstructure:"llamacloud"`

	// LLMOptions contains the selector and synthesizer LLM configuration.
	LLMOptions *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`

	// DispatchOptions contains strategy, retry and normalization settings.
	DispatchOptions *dispatchopts.Options `json:"dispatch" mapstructure:"dispatch"`

	// PoolOptions contains the retrieval worker pool configuration.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`

	// CacheOptions contains result cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracing.Options `json:"tracing" mapstructure:"tracing"`

	// MiddlewareOptions contains HTTP middleware configuration.
	MiddlewareOptions *mwopts.Options `json:"middleware" mapstructure:"middleware"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		LlamaCloudOptions: llamaopts.NewOptions(),
		LLMOptions:        llmopts.NewProviderOptions(),
		DispatchOptions:   dispatchopts.NewOptions(),
		PoolOptions:       poolopts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		TracingOptions:    tracing.NewOptions(),
		MiddlewareOptions: mwopts.NewOptions(),
	}
}

// AddFlags adds the flags of every option group to fs.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.LlamaCloudOptions.AddFlags(fs)
	o.LLMOptions.AddFlags(fs)
	o.DispatchOptions.AddFlags(fs)
	o.PoolOptions.AddFlags(fs)
	o.CacheOptions.AddFlags(fs)
	o.TracingOptions.AddFlags(fs)
	o.MiddlewareOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.LlamaCloudOptions.Complete(); err != nil {
		return fmt.Errorf("llamacloud: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := o.DispatchOptions.Complete(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := o.PoolOptions.Complete(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.LlamaCloudOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.DispatchOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a llamaquery.Config based on ServerOptions.
func (o *ServerOptions) Config() (*llamaquery.Config, error) {
	return &llamaquery.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		LlamaCloudOptions: o.LlamaCloudOptions,
		LLMOptions:        o.LLMOptions,
		DispatchOptions:   o.DispatchOptions,
		PoolOptions:       o.PoolOptions,
		CacheOptions:      o.CacheOptions,
		TracingOptions:    o.TracingOptions,
		MiddlewareOptions: o.MiddlewareOptions,
	}, nil
}
