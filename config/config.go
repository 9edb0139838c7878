package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "LENDCORE"
	DefaultFileName = ".lendcore.yaml"
)

const (
	keyLiquidatorFee        = "liquidation.liquidator_fee"
	keyInsuranceFee         = "liquidation.insurance_fee"
	keyBankruptThreshold    = "bankruptcy.threshold"
	keyOracleMaxAge         = "oracle.max_age"
	keyConfIntervalMultiple = "oracle.conf_interval_multiple"
	keyStdDevMultiple       = "oracle.std_dev_multiple"
	keyMaxConfInterval      = "oracle.max_conf_interval"
	keyMaxDeviation         = "oracle.max_deviation"
	keyDebug                = "debug"
)

// Config is everything the CLI needs besides the scenario itself.
type Config struct {
	Processor core.ProcessorConfig
	Debug     bool

	// File is the config file that was read, empty when only defaults and
	// env were used.
	File string
}

// DefaultFile returns ~/.lendcore.yaml when it exists.
func DefaultFile() string {
	dir, err := homedir.Dir()
	if err != nil {
		return ""
	}

	filename := filepath.Join(dir, DefaultFileName)
	info, err := os.Stat(filename)
	if err != nil || info.IsDir() {
		return ""
	}
	return filename
}

func newViper() *viper.Viper {
	defaults := core.DefaultProcessorConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyLiquidatorFee, defaults.LiquidatorFee.String())
	v.SetDefault(keyInsuranceFee, defaults.InsuranceFee.String())
	v.SetDefault(keyBankruptThreshold, defaults.BankruptThreshold.String())
	v.SetDefault(keyOracleMaxAge, defaults.Oracle.DefaultMaxAge)
	v.SetDefault(keyConfIntervalMultiple, defaults.Oracle.ConfIntervalMultiple.String())
	v.SetDefault(keyStdDevMultiple, defaults.Oracle.StdDevMultiple.String())
	v.SetDefault(keyMaxConfInterval, defaults.Oracle.MaxConfInterval.String())
	v.SetDefault(keyMaxDeviation, defaults.Oracle.MaxDeviation.String())
	v.SetDefault(keyDebug, false)
	return v
}

// Load reads file (yaml, toml or json by extension) on top of the defaults,
// then lets LENDCORE_* environment variables override it. A .env file in the
// working directory is loaded first when present. An empty file means
// defaults and env only.
func Load(file string) (*Config, error) {
	// no .env is fine, the environment may already carry everything
	_ = godotenv.Load()

	v := newViper()
	if file != "" {
		expanded, err := homedir.Expand(file)
		if err != nil {
			return nil, errors.Wrapf(err, "expand %s", file)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", expanded)
		}
		file = expanded
	}

	cfg := &Config{
		Debug: v.GetBool(keyDebug),
		File:  file,
	}

	var err error
	p := &cfg.Processor
	if p.LiquidatorFee, err = getDecimal(v, keyLiquidatorFee); err != nil {
		return nil, err
	}
	if p.InsuranceFee, err = getDecimal(v, keyInsuranceFee); err != nil {
		return nil, err
	}
	if p.BankruptThreshold, err = getDecimal(v, keyBankruptThreshold); err != nil {
		return nil, err
	}
	p.Oracle.DefaultMaxAge = v.GetInt64(keyOracleMaxAge)
	if p.Oracle.ConfIntervalMultiple, err = getDecimal(v, keyConfIntervalMultiple); err != nil {
		return nil, err
	}
	if p.Oracle.StdDevMultiple, err = getDecimal(v, keyStdDevMultiple); err != nil {
		return nil, err
	}
	if p.Oracle.MaxConfInterval, err = getDecimal(v, keyMaxConfInterval); err != nil {
		return nil, err
	}
	if p.Oracle.MaxDeviation, err = getDecimal(v, keyMaxDeviation); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getDecimal accepts both quoted and bare numbers.
func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, errors.Wrapf(core.InvalidConfig, "%s: %v", key, err)
	}
	return value, nil
}

// Settings flattens cfg into the keys Load understands.
func (c *Config) Settings() map[string]string {
	p := c.Processor
	return map[string]string{
		keyLiquidatorFee:        p.LiquidatorFee.String(),
		keyInsuranceFee:         p.InsuranceFee.String(),
		keyBankruptThreshold:    p.BankruptThreshold.String(),
		keyOracleMaxAge:         decimal.NewFromInt(p.Oracle.DefaultMaxAge).String(),
		keyConfIntervalMultiple: p.Oracle.ConfIntervalMultiple.String(),
		keyStdDevMultiple:       p.Oracle.StdDevMultiple.String(),
		keyMaxConfInterval:      p.Oracle.MaxConfInterval.String(),
		keyMaxDeviation:         p.Oracle.MaxDeviation.String(),
	}
}
