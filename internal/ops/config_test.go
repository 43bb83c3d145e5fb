package ops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"main/internal/model"
	"main/pkg/exception"
)

const testYAML = `
sources:
  - exchange: Binance
    enabled: true
    symbols: ["BTC/USDT", "ETH/USDT"]
    ws_url: wss://stream.example.com
    rest_url: https://api.example.com
  - exchange: synthetic
    enabled: true
    symbols: ["BTC/USDT"]
thresholds:
  price_diff_pct: 1.5
  ts_diff_ms: 2000
  sequence_gap: 3
  spread_pct_normal: 1
  spread_pct_critical: 5
  volume_ratio: 10
pipeline:
  max_depth: 32
bus_size: 2048
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sources) != 2 || cfg.BusSize != 2048 {
		t.Fatalf("config: %+v", cfg)
	}

	sources, err := cfg.SourceConfigs()
	if err != nil {
		t.Fatalf("source configs: %v", err)
	}
	if sources[0].Exchange != "binance" {
		t.Fatalf("exchange not lowercased: %s", sources[0].Exchange)
	}
	if len(sources[0].Symbols) != 2 || sources[0].Symbols[0] != model.NewSymbol("BTC", "USDT") {
		t.Fatalf("symbols: %+v", sources[0].Symbols)
	}

	th := cfg.ConsistencyThresholds()
	if th.PriceDiffPct != 1.5 || th.SequenceGap != 3 {
		t.Fatalf("thresholds: %+v", th)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MD_BINANCE_WS_URL", "wss://override.example.com")
	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sources[0].WSURL != "wss://override.example.com" {
		t.Fatalf("override ignored: %s", cfg.Sources[0].WSURL)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "empty sources",
			yaml: `sources: []`,
			want: exception.ErrConfigEmptySources,
		},
		{
			name: "duplicate exchange",
			yaml: `
sources:
  - exchange: binance
    enabled: true
    symbols: ["BTC/USDT"]
    ws_url: wss://a
    rest_url: https://a
  - exchange: Binance
    enabled: true
    symbols: ["BTC/USDT"]
    ws_url: wss://b
    rest_url: https://b
`,
			want: exception.ErrConfigDuplicateSource,
		},
		{
			name: "no symbols",
			yaml: `
sources:
  - exchange: binance
    enabled: true
    ws_url: wss://a
    rest_url: https://a
`,
			want: exception.ErrConfigNoSymbols,
		},
		{
			name: "missing endpoint",
			yaml: `
sources:
  - exchange: binance
    enabled: true
    symbols: ["BTC/USDT"]
`,
			want: exception.ErrConfigMissingEndpoint,
		},
		{
			name: "negative threshold",
			yaml: `
sources:
  - exchange: synthetic
    enabled: true
    symbols: ["BTC/USDT"]
thresholds:
  price_diff_pct: -1
`,
			want: exception.ErrConfigInvalidThreshold,
		},
		{
			name: "inverted spread tiers",
			yaml: `
sources:
  - exchange: synthetic
    enabled: true
    symbols: ["BTC/USDT"]
thresholds:
  spread_pct_normal: 6
  spread_pct_critical: 5
`,
			want: exception.ErrConfigInvalidThreshold,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.yaml))
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v want %v", err, c.want)
			}
		})
	}
}

func TestValidateDisabledSourceSkipsChecks(t *testing.T) {
	yaml := `
sources:
  - exchange: binance
    enabled: false
  - exchange: synthetic
    enabled: true
    symbols: ["BTC/USDT"]
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("disabled source should not be validated: %v", err)
	}
}
