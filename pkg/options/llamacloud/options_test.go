package llamacloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, "Sharepoint Deal Pipeline", o.Indices[0].Name)
	assert.Equal(t, 6, o.RerankTopN)
}

func TestValidateRejectsNonPositiveTimeouts(t *testing.T) {
	o := NewOptions()
	o.ReadTimeout = 0
	o.PoolTimeout = -1
	assert.Len(t, o.Validate(), 2)
}

func TestValidateRequiresIndices(t *testing.T) {
	o := NewOptions()
	o.Indices = nil
	assert.NotEmpty(t, o.Validate())

	assert.NoError(t, o.Complete())
	assert.Len(t, o.Indices, 2)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")
	o := NewOptions()
	assert.Equal(t, "from-env", o.ResolveAPIKey())

	o.APIKey = "from-config"
	assert.Equal(t, "from-config", o.ResolveAPIKey())
}
