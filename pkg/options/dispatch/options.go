// Package dispatch provides configuration for the query dispatch pipeline.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Strategy names.
const (
	StrategySingle       = "single"
	StrategyComposite    = "composite"
	StrategyRouter       = "router"
	StrategyRouterEngine = "router-engine"
)

// RetryOptions 检索重试策略。
type RetryOptions struct {
	MaxAttempts int           `json:"max-attempts" mapstructure:"max-attempts" validate:"min=1,max=10"`
	Backoff     time.Duration `json:"backoff" mapstructure:"backoff" validate:"min=0"`
}

// NormalizerOptions 上下文截断配置。
type NormalizerOptions struct {
	Truncate       bool `json:"truncate" mapstructure:"truncate"`
	ContextWindow  int  `json:"context-window" mapstructure:"context-window" validate:"gt=0,gtfield=ReservedOutput"`
	ReservedOutput int  `json:"reserved-output" mapstructure:"reserved-output" validate:"min=0"`
}

// SynthesisOptions refine 合成配置。
type SynthesisOptions struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Temperature float64 `json:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
}

// StreamOptions 自适应流式输出配置。
type StreamOptions struct {
	// Threshold 文本总长度（字符）超过该值时以 NDJSON 流式返回，0 表示关闭。
	Threshold int `json:"threshold" mapstructure:"threshold" validate:"min=0"`
}

// Options 查询分发配置。
type Options struct {
	Strategy       string            `json:"strategy" mapstructure:"strategy" validate:"oneof=single composite router router-engine"`
	MetricsEnabled bool              `json:"metrics-enabled" mapstructure:"metrics-enabled"`
	Retry          RetryOptions      `json:"retry" mapstructure:"retry"`
	Normalizer     NormalizerOptions `json:"normalizer" mapstructure:"normalizer"`
	Synthesis      SynthesisOptions  `json:"synthesis" mapstructure:"synthesis"`
	Stream         StreamOptions     `json:"stream" mapstructure:"stream"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Strategy:       StrategyComposite,
		MetricsEnabled: true,
		Retry: RetryOptions{
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
		Normalizer: NormalizerOptions{
			Truncate:       false,
			ContextWindow:  32000,
			ReservedOutput: 1024,
		},
		Synthesis: SynthesisOptions{
			Enabled:     false,
			Temperature: 0.2,
		},
		Stream: StreamOptions{
			Threshold: 3_000_000,
		},
	}
}

// AddFlags adds flags for dispatch options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "dispatch."
	fs.StringVar(&o.Strategy, p+"strategy", o.Strategy, "Retrieval strategy: single, composite, router or router-engine.")
	fs.BoolVar(&o.MetricsEnabled, p+"metrics-enabled", o.MetricsEnabled, "Expose dispatcher counters at /metrics.")
	fs.IntVar(&o.Retry.MaxAttempts, p+"retry.max-attempts", o.Retry.MaxAttempts, "Total attempts for transient upstream failures.")
	fs.DurationVar(&o.Retry.Backoff, p+"retry.backoff", o.Retry.Backoff, "Fixed wait between attempts.")
	fs.BoolVar(&o.Normalizer.Truncate, p+"normalizer.truncate", o.Normalizer.Truncate, "Truncate concatenated text to the context budget.")
	fs.IntVar(&o.Normalizer.ContextWindow, p+"normalizer.context-window", o.Normalizer.ContextWindow, "Context window in estimated tokens.")
	fs.IntVar(&o.Normalizer.ReservedOutput, p+"normalizer.reserved-output", o.Normalizer.ReservedOutput, "Tokens reserved for the model output.")
	fs.BoolVar(&o.Synthesis.Enabled, p+"synthesis.enabled", o.Synthesis.Enabled, "Synthesize an answer over the retrieved nodes.")
	fs.Float64Var(&o.Synthesis.Temperature, p+"synthesis.temperature", o.Synthesis.Temperature, "Sampling temperature for synthesis.")
	fs.IntVar(&o.Stream.Threshold, p+"stream.threshold", o.Stream.Threshold, "Stream results as NDJSON above this many characters (0 disables).")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the dispatch options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("dispatch: %s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errs
}

// Complete completes the dispatch options with defaults.
func (o *Options) Complete() error {
	if o.Strategy == "" {
		o.Strategy = StrategyComposite
	}
	return nil
}

// NeedsLLM reports whether the configured pipeline calls the LLM.
func (o *Options) NeedsLLM() bool {
	return o.Strategy == StrategyRouter || o.Strategy == StrategyRouterEngine || o.Synthesis.Enabled
}

// Budget returns the number of tokens available for context.
func (o *NormalizerOptions) Budget() int {
	return o.ContextWindow - o.ReservedOutput
}
