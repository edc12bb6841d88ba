package dispatch

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 3, o.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, o.Retry.Backoff)
	assert.Equal(t, 32000-1024, o.Normalizer.Budget())
	assert.Equal(t, 3_000_000, o.Stream.Threshold)
	assert.False(t, o.NeedsLLM())
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	o := NewOptions()
	o.Strategy = "fan-out"
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Strategy")
}

func TestValidateRejectsBadBudget(t *testing.T) {
	o := NewOptions()
	o.Normalizer.ContextWindow = 512
	o.Retry.MaxAttempts = 0
	assert.Len(t, o.Validate(), 2)
}

func TestNeedsLLM(t *testing.T) {
	for strategy, want := range map[string]bool{
		StrategySingle:       false,
		StrategyComposite:    false,
		StrategyRouter:       true,
		StrategyRouterEngine: true,
	} {
		o := NewOptions()
		o.Strategy = strategy
		assert.Equal(t, want, o.NeedsLLM(), strategy)
	}

	o := NewOptions()
	o.Synthesis.Enabled = true
	assert.True(t, o.NeedsLLM())
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--dispatch.strategy=router-engine",
		"--dispatch.retry.backoff=1s",
		"--dispatch.stream.threshold=10",
	}))
	assert.Equal(t, StrategyRouterEngine, o.Strategy)
	assert.Equal(t, time.Second, o.Retry.Backoff)
	assert.Equal(t, 10, o.Stream.Threshold)
}
