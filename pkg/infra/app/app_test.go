package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Index   string `mapstructure:"index"`
	Retries int    `mapstructure:"retries"`

	completed bool
	invalid   bool
}

func (o *testOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", ":8000", "listen address")
	fs.StringVar(&o.Index, "index", "default", "index name")
	fs.IntVar(&o.Retries, "retries", 3, "retries")
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid options")
	}
	return nil
}

func runApp(t *testing.T, opts *testOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp(
		WithName("beast-test"),
		WithNoVersion(),
		WithSilence(),
		WithOptions(opts),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	if err == nil {
		assert.True(t, ran)
	}
	return err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsWithoutConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	opts := &testOptions{}

	require.NoError(t, runApp(t, opts))
	assert.Equal(t, ":8000", opts.Server.Addr)
	assert.Equal(t, 3, opts.Retries)
	assert.True(t, opts.completed)
}

func TestConfigFileThenEnvThenFlags(t *testing.T) {
	cfg := writeFile(t, "beast.yaml", "server:\n  addr: \":9000\"\nindex: from-file\nretries: 5\n")
	t.Setenv("BEAST_TEST_INDEX", "from-env")

	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--config", cfg, "--retries", "7"))

	assert.Equal(t, ":9000", opts.Server.Addr)
	assert.Equal(t, "from-env", opts.Index)
	assert.Equal(t, 7, opts.Retries)
}

func TestEnvOverridesKeyAbsentFromFile(t *testing.T) {
	cfg := writeFile(t, "beast.yaml", "index: from-file\n")
	t.Setenv("BEAST_TEST_SERVER_ADDR", ":7000")

	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--config", cfg))
	assert.Equal(t, ":7000", opts.Server.Addr)
}

func TestConfigEnvExpansion(t *testing.T) {
	t.Setenv("BEAST_INDEX_NAME", "expanded")
	cfg := writeFile(t, "beast.yaml", "index: ${BEAST_INDEX_NAME}\n")

	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--config", cfg))
	assert.Equal(t, "expanded", opts.Index)
}

func TestEnvFileLoaded(t *testing.T) {
	envFile := writeFile(t, "test.env", "BEAST_TEST_RETRIES=9\n")
	t.Cleanup(func() { _ = os.Unsetenv("BEAST_TEST_RETRIES") })

	opts := &testOptions{}
	require.NoError(t, runApp(t, opts, "--env-file", envFile))
	assert.Equal(t, 9, opts.Retries)
}

func TestExplicitMissingEnvFileFails(t *testing.T) {
	opts := &testOptions{}
	err := runApp(t, opts, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidateErrorStopsRun(t *testing.T) {
	t.Chdir(t.TempDir())
	opts := &testOptions{invalid: true}
	err := runApp(t, opts)
	assert.EqualError(t, err, "invalid options")
}
