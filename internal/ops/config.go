// Package ops loads and validates the runtime configuration. The file is
// yaml, endpoints can be overridden per exchange through the environment,
// and edits to the file are picked up while running.
package ops

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/consistency"
	"main/internal/model"
	"main/internal/source"
	"main/pkg/exception"
)

// SourceConfig mirrors one entry of the sources list.
type SourceConfig struct {
	Exchange             string        `mapstructure:"exchange"`
	Enabled              bool          `mapstructure:"enabled"`
	Symbols              []string      `mapstructure:"symbols"`
	WSURL                string        `mapstructure:"ws_url"`
	RESTURL              string        `mapstructure:"rest_url"`
	Channel              string        `mapstructure:"channel"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	APIKey               string        `mapstructure:"api_key"`
	APISecret            string        `mapstructure:"api_secret"`
}

// ThresholdConfig mirrors the consistency thresholds block.
type ThresholdConfig struct {
	PriceDiffPct      float64 `mapstructure:"price_diff_pct"`
	TsDiffMs          int64   `mapstructure:"ts_diff_ms"`
	SequenceGap       uint64  `mapstructure:"sequence_gap"`
	SpreadPctNormal   float64 `mapstructure:"spread_pct_normal"`
	SpreadPctCritical float64 `mapstructure:"spread_pct_critical"`
	VolumeRatio       float64 `mapstructure:"volume_ratio"`
	MaxTimeDiffMs     int64   `mapstructure:"max_time_diff_ms"`
}

// PipelineConfig mirrors the cleaning and strategy block.
type PipelineConfig struct {
	MaxDepth         int           `mapstructure:"max_depth"`
	WeightDepth      float64       `mapstructure:"weight_depth"`
	WeightFrequency  float64       `mapstructure:"weight_frequency"`
	WeightVolatility float64       `mapstructure:"weight_volatility"`
	WeightLoad       float64       `mapstructure:"weight_load"`
	LightBelow       float64       `mapstructure:"light_below"`
	AggressiveAbove  float64       `mapstructure:"aggressive_above"`
	Hysteresis       float64       `mapstructure:"hysteresis"`
	MinDwell         time.Duration `mapstructure:"min_dwell"`
	RollbackMultiple float64       `mapstructure:"rollback_multiple"`
}

// CacheConfig mirrors the tiered cache block.
type CacheConfig struct {
	T1Capacity    int           `mapstructure:"t1_capacity"`
	T2Dir         string        `mapstructure:"t2_dir"`
	T2TTL         time.Duration `mapstructure:"t2_ttl"`
	ArchiveAfter  time.Duration `mapstructure:"archive_after"`
	T3Dir         string        `mapstructure:"t3_dir"`
	T3TTL         time.Duration `mapstructure:"t3_ttl"`
	T3Enabled     bool          `mapstructure:"t3_enabled"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// KafkaConfig mirrors the anomaly stream block.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ArchiveConfig mirrors the anomaly database block.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RecorderConfig mirrors the event journal block.
type RecorderConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	SegmentSize int64  `mapstructure:"segment_size"`
}

// ServerConfig mirrors the http surface block.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// PyroscopeConfig mirrors the profiling block.
type PyroscopeConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ServerURL string `mapstructure:"server_url"`
	AppName   string `mapstructure:"app_name"`
}

// Config is the full runtime configuration.
type Config struct {
	Sources    []SourceConfig  `mapstructure:"sources"`
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
	Pipeline   PipelineConfig  `mapstructure:"pipeline"`
	Cache      CacheConfig     `mapstructure:"cache"`
	BusSize    int             `mapstructure:"bus_size"`
	PoolSize   int             `mapstructure:"pool_size"`
	StateDir   string          `mapstructure:"state_dir"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Archive    ArchiveConfig   `mapstructure:"archive"`
	Recorder   RecorderConfig  `mapstructure:"recorder"`
	Server     ServerConfig    `mapstructure:"server"`
	Pyroscope  PyroscopeConfig `mapstructure:"pyroscope"`
}

// Load reads, overrides and validates the config at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments point a source at a different
// endpoint without editing the file: MD_<EXCHANGE>_WS_URL and
// MD_<EXCHANGE>_REST_URL.
func (c *Config) applyEnvOverrides() {
	for i := range c.Sources {
		prefix := "MD_" + strings.ToUpper(c.Sources[i].Exchange) + "_"
		if ws := os.Getenv(prefix + "WS_URL"); ws != "" {
			c.Sources[i].WSURL = ws
		}
		if rest := os.Getenv(prefix + "REST_URL"); rest != "" {
			c.Sources[i].RESTURL = rest
		}
	}
}

// Validate rejects configurations the engine could not run with.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return exception.ErrConfigEmptySources
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		name := strings.ToLower(src.Exchange)
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s: %w", src.Exchange, exception.ErrConfigDuplicateSource)
		}
		seen[name] = struct{}{}
		if !src.Enabled {
			continue
		}
		if len(src.Symbols) == 0 {
			return fmt.Errorf("%s: %w", src.Exchange, exception.ErrConfigNoSymbols)
		}
		for _, raw := range src.Symbols {
			if _, err := model.ParseSymbol(raw); err != nil {
				return fmt.Errorf("source %s symbol %q: %w", src.Exchange, raw, err)
			}
		}
		// the synthetic source needs no endpoints
		if name == "synthetic" {
			continue
		}
		if src.WSURL == "" || src.RESTURL == "" {
			return fmt.Errorf("%s: %w", src.Exchange, exception.ErrConfigMissingEndpoint)
		}
	}

	th := c.Thresholds
	if th.PriceDiffPct < 0 || th.SpreadPctNormal < 0 || th.SpreadPctCritical < 0 ||
		th.VolumeRatio < 0 || th.TsDiffMs < 0 || th.MaxTimeDiffMs < 0 {
		return exception.ErrConfigInvalidThreshold
	}
	if th.SpreadPctCritical > 0 && th.SpreadPctNormal > th.SpreadPctCritical {
		return exception.ErrConfigInvalidThreshold
	}
	return nil
}

// SourceConfigs converts the file entries into the adapter contract form.
func (c *Config) SourceConfigs() ([]source.Config, error) {
	out := make([]source.Config, 0, len(c.Sources))
	for _, src := range c.Sources {
		symbols := make([]model.Symbol, 0, len(src.Symbols))
		for _, raw := range src.Symbols {
			symbol, err := model.ParseSymbol(raw)
			if err != nil {
				return nil, fmt.Errorf("source %s symbol %q: %w", src.Exchange, raw, err)
			}
			symbols = append(symbols, symbol)
		}
		out = append(out, source.Config{
			Exchange:             strings.ToLower(src.Exchange),
			Enabled:              src.Enabled,
			Symbols:              symbols,
			WSURL:                src.WSURL,
			RESTURL:              src.RESTURL,
			Channel:              src.Channel,
			ReconnectInterval:    src.ReconnectInterval,
			MaxReconnectAttempts: src.MaxReconnectAttempts,
			APIKey:               src.APIKey,
			APISecret:            src.APISecret,
		})
	}
	return out, nil
}

// ConsistencyThresholds converts the thresholds block.
func (c *Config) ConsistencyThresholds() consistency.Thresholds {
	return consistency.Thresholds{
		PriceDiffPct:      c.Thresholds.PriceDiffPct,
		TsDiffMs:          c.Thresholds.TsDiffMs,
		SequenceGap:       c.Thresholds.SequenceGap,
		SpreadPctNormal:   c.Thresholds.SpreadPctNormal,
		SpreadPctCritical: c.Thresholds.SpreadPctCritical,
		VolumeRatio:       c.Thresholds.VolumeRatio,
		MaxTimeDiffMs:     c.Thresholds.MaxTimeDiffMs,
	}
}

// Watch re-reads the file on change and hands valid configs to onChange.
// Invalid edits are logged and ignored, keeping the running config.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "read config")
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logs.Errorf("config reload rejected, err: %+v", err)
			return
		}
		logs.Info("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
