package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: fxdesk-test\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "fxdesk-test" {
		t.Errorf("app.name = %q, want fxdesk-test", cfg.App.Name)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("database.driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Deals.ExecutionTimeout != 5*time.Minute {
		t.Errorf("deals.execution_timeout = %s, want 5m", cfg.Deals.ExecutionTimeout)
	}
	if cfg.Pricing.FreshnessWindow != 60*time.Second {
		t.Errorf("pricing.freshness_window = %s, want 60s", cfg.Pricing.FreshnessWindow)
	}

	base, lo, hi := cfg.Pricing.DefaultFixedSpread()
	if base.String() != "0.5" || lo.String() != "0.1" || hi.String() != "2" {
		t.Errorf("default spread = %s/%s/%s, want 0.5/0.1/2", base, lo, hi)
	}
	if len(cfg.Deals.Partners) != 1 || cfg.Deals.Partners[0].ID != "demo" {
		t.Errorf("deals.partners = %+v, want demo seed", cfg.Deals.Partners)
	}
	if cfg.Volatility.MinDataPoints != 10 {
		t.Errorf("volatility.min_data_points = %d, want 10", cfg.Volatility.MinDataPoints)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FXD_DB_DRIVER", "postgres")
	t.Setenv("FXD_DB_DSN", "postgres://localhost/fxdesk?sslmode=disable")
	t.Setenv("FXD_LOG_LEVEL", "debug")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Database.UsesPostgres() {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.App.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "memory"},
			Pricing: PricingConfig{
				DefaultBaseSpread: 0.5,
				DefaultMinSpread:  0.1,
				DefaultMaxSpread:  2.0,
			},
			Volatility: VolatilityConfig{
				MinDataPoints:     10,
				LowThreshold:      5,
				MediumThreshold:   10,
				HighThreshold:     15,
				CriticalThreshold: 20,
				SmoothingFactor:   0.7,
			},
			Deals: DealsConfig{ExecutionTimeout: time.Minute},
			P2P:   P2PConfig{Simulate: true},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported"},
		{"min above base", func(c *Config) { c.Pricing.DefaultMinSpread = 0.6 }, "default spread"},
		{"smoothing above one", func(c *Config) { c.Volatility.SmoothingFactor = 1.5 }, "smoothing"},
		{"thresholds out of order", func(c *Config) { c.Volatility.HighThreshold = 25 }, "ascending"},
		{"zero timeout", func(c *Config) { c.Deals.ExecutionTimeout = 0 }, "execution_timeout"},
		{"live venue without url", func(c *Config) { c.P2P.Simulate = false }, "p2p.base_url"},
		{"partner without id", func(c *Config) { c.Deals.Partners = []PartnerSeed{{Name: "x"}} }, "partners[0].id"},
		{"partner bad amount", func(c *Config) { c.Deals.Partners = []PartnerSeed{{ID: "p1", MaxAmount: "lots"}} }, "invalid amount"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = []string{"b:9092"} }, "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
