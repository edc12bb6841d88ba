package options

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.HTTPOptions.Addr)
	assert.Equal(t, dispatchopts.StrategyComposite, cfg.DispatchOptions.Strategy)
	assert.Len(t, cfg.LlamaCloudOptions.Indices, 2)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	o := NewServerOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--dispatch.strategy=router-engine",
		"--http.addr=:9000",
		"--cache.redis.port=6380",
	}))
	assert.Equal(t, dispatchopts.StrategyRouterEngine, o.DispatchOptions.Strategy)
	assert.Equal(t, ":9000", o.HTTPOptions.Addr)
	assert.Equal(t, 6380, o.CacheOptions.Redis.Port)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewServerOptions()
	o.DispatchOptions.Strategy = "fan-out"
	o.LLMOptions.Model = ""

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.model")
}
