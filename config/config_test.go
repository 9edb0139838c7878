package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	defaults := core.DefaultProcessorConfig()
	assert.True(t, cfg.Processor.LiquidatorFee.Equal(defaults.LiquidatorFee))
	assert.True(t, cfg.Processor.InsuranceFee.Equal(defaults.InsuranceFee))
	assert.True(t, cfg.Processor.BankruptThreshold.Equal(defaults.BankruptThreshold))
	assert.Equal(t, defaults.Oracle.DefaultMaxAge, cfg.Processor.Oracle.DefaultMaxAge)
	assert.True(t, cfg.Processor.Oracle.MaxDeviation.Equal(defaults.Oracle.MaxDeviation))
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "lendcore.yaml", `
debug: true
liquidation:
  liquidator_fee: "0.03"
  insurance_fee: 0.02
oracle:
  max_age: 120
  max_deviation: "0.005"
`},
		{"toml", "lendcore.toml", `
debug = true
[liquidation]
liquidator_fee = "0.03"
insurance_fee = "0.02"
[oracle]
max_age = 120
max_deviation = "0.005"
`},
		{"json", "lendcore.json", `{
  "debug": true,
  "liquidation": {"liquidator_fee": "0.03", "insurance_fee": "0.02"},
  "oracle": {"max_age": 120, "max_deviation": "0.005"}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, path, cfg.File)
			assert.True(t, cfg.Debug)
			assert.Equal(t, "0.03", cfg.Processor.LiquidatorFee.String())
			assert.Equal(t, "0.02", cfg.Processor.InsuranceFee.String())
			assert.Equal(t, int64(120), cfg.Processor.Oracle.DefaultMaxAge)
			assert.Equal(t, "0.005", cfg.Processor.Oracle.MaxDeviation.String())
			// untouched keys keep their defaults
			assert.Equal(t, core.BANKRUPT_THRESHOLD.String(), cfg.Processor.BankruptThreshold.String())
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "lendcore.yaml", "liquidation:\n  liquidator_fee: \"0.03\"\n")
	t.Setenv("LENDCORE_LIQUIDATION_LIQUIDATOR_FEE", "0.04")
	t.Setenv("LENDCORE_BANKRUPTCY_THRESHOLD", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.04", cfg.Processor.LiquidatorFee.String())
	assert.Equal(t, "1", cfg.Processor.BankruptThreshold.String())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "liquidation:\n  liquidator_fee: lots\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, core.InvalidConfig)

	path = writeFile(t, "fees.yaml", "liquidation:\n  liquidator_fee: 0.6\n  insurance_fee: 0.5\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, core.InvalidConfig)
	assert.Equal(t, core.KindConfigInvalid, core.KindOf(err))
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, "0.025", settings["liquidation.liquidator_fee"])
	assert.Equal(t, "60", settings["oracle.max_age"])
	assert.Len(t, settings, 8)
}

func TestDefaultFile(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Empty(t, DefaultFile())

	path := filepath.Join(home, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))
	assert.Equal(t, path, DefaultFile())

	cfg, err := Load("~/" + DefaultFileName)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.True(t, cfg.Debug)
}
