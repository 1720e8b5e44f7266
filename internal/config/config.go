// Package config loads solana-fee-lab settings from a config file,
// SFL_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/solana"
)

// File locations and environment prefix.
const (
	DefaultDir  = "~/.solana-fee-lab"
	DefaultName = "config"
	EnvPrefix   = "SFL"
)

// Keys.
const (
	KeyNetwork         = "network"
	KeyRPCEndpoint     = "rpc-endpoint"
	KeyWSEndpoint      = "ws-endpoint"
	KeyCallTimeout     = "call-timeout"
	KeyFeeCacheTTL     = "fee-cache-ttl"
	KeyPostgresDSN     = "postgres-dsn"
	KeyClickHouseDSN   = "clickhouse-dsn"
	KeySQLitePath      = "sqlite-path"
	KeyMetricsAddr     = "metrics-addr"
	KeyOTLPEndpoint    = "otlp-endpoint"
	KeyMonitorInterval = "monitor-interval"
	KeyWatchPayer      = "watch-payer"
	KeyUnitEstimates   = "unit-estimates"
)

// Config is the resolved configuration.
type Config struct {
	Network         string
	Cluster         solana.Cluster // endpoints after overrides
	RPCEndpoint     string         // configured override, empty for the preset
	WSEndpoint      string         // configured override, empty for the preset
	CallTimeout     time.Duration
	FeeCacheTTL     time.Duration
	PostgresDSN     string
	ClickHouseDSN   string
	SQLitePath      string // expanded; empty disables local history
	MetricsAddr     string
	OTLPEndpoint    string // empty disables trace export
	MonitorInterval time.Duration
	WatchPayer      string
	UnitEstimates   batch.UnitTable
	FileUsed        string // config file read, if any
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyNetwork, solana.DefaultCluster.Name)
	v.SetDefault(KeyRPCEndpoint, "")
	v.SetDefault(KeyWSEndpoint, "")
	v.SetDefault(KeyCallTimeout, 30*time.Second)
	v.SetDefault(KeyFeeCacheTTL, 60*time.Second)
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyClickHouseDSN, "")
	v.SetDefault(KeySQLitePath, DefaultDir+"/history.db")
	v.SetDefault(KeyMetricsAddr, ":9090")
	v.SetDefault(KeyOTLPEndpoint, "")
	v.SetDefault(KeyMonitorInterval, 30*time.Second)
	v.SetDefault(KeyWatchPayer, "")
	for c, units := range batch.DefaultUnitTable() {
		v.SetDefault(KeyUnitEstimates+"."+string(c), units)
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads file, or config.yaml from DefaultDir when file is empty, and
// resolves the result. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return nil, fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		dir, err := homedir.Expand(DefaultDir)
		if err != nil {
			return nil, fmt.Errorf("expand config dir: %w", err)
		}
		v.AddConfigPath(dir)
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return Resolve(v)
}

// Resolve builds a Config from the current viper state.
func Resolve(v *viper.Viper) (*Config, error) {
	cluster, err := solana.Resolve(v.GetString(KeyNetwork), v.GetString(KeyRPCEndpoint), v.GetString(KeyWSEndpoint))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:         cluster.Name,
		Cluster:         cluster,
		RPCEndpoint:     v.GetString(KeyRPCEndpoint),
		WSEndpoint:      v.GetString(KeyWSEndpoint),
		CallTimeout:     v.GetDuration(KeyCallTimeout),
		FeeCacheTTL:     v.GetDuration(KeyFeeCacheTTL),
		PostgresDSN:     v.GetString(KeyPostgresDSN),
		ClickHouseDSN:   v.GetString(KeyClickHouseDSN),
		MetricsAddr:     v.GetString(KeyMetricsAddr),
		OTLPEndpoint:    v.GetString(KeyOTLPEndpoint),
		MonitorInterval: v.GetDuration(KeyMonitorInterval),
		WatchPayer:      strings.TrimSpace(v.GetString(KeyWatchPayer)),
		FileUsed:        v.ConfigFileUsed(),
	}

	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyCallTimeout, cfg.CallTimeout)
	}
	if cfg.FeeCacheTTL <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyFeeCacheTTL, cfg.FeeCacheTTL)
	}
	if cfg.MonitorInterval <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyMonitorInterval, cfg.MonitorInterval)
	}
	if cfg.WatchPayer != "" {
		if err := solana.ValidateAddress(cfg.WatchPayer); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyWatchPayer, err)
		}
	}

	if p := v.GetString(KeySQLitePath); p != "" {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", KeySQLitePath, err)
		}
		cfg.SQLitePath = filepath.Clean(expanded)
	}

	overrides := make(map[string]int64)
	for name := range v.GetStringMap(KeyUnitEstimates) {
		if !domain.Category(name).Valid() {
			return nil, fmt.Errorf("%s: unknown category %q", KeyUnitEstimates, name)
		}
		units := v.GetInt64(KeyUnitEstimates + "." + name)
		if units <= 0 {
			return nil, fmt.Errorf("%s.%s must be positive, got %d", KeyUnitEstimates, name, units)
		}
		overrides[name] = units
	}
	cfg.UnitEstimates = batch.DefaultUnitTable().WithOverrides(overrides)

	return cfg, nil
}
