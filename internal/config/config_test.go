package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("EVENTSYNC_UPSTREAM__BASE_URL", "https://api.example.com/v1")
	t.Setenv("EVENTSYNC_UPSTREAM__API_KEY", "secret")
	t.Setenv("EVENTSYNC_STORE__DSN", "postgres://localhost/eventsync")
	t.Setenv("EVENTSYNC_ATTRIBUTION__BUSINESS_ID", "biz-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.PageSize != 100 {
		t.Errorf("page size = %d, want 100", cfg.Upstream.PageSize)
	}
	if cfg.Upstream.MaxPages != 50 {
		t.Errorf("max pages = %d, want 50", cfg.Upstream.MaxPages)
	}
	if cfg.Market.Country != "Denmark" || cfg.Market.City != "Copenhagen" {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.Sync.Interval != 6*time.Hour {
		t.Errorf("interval = %v", cfg.Sync.Interval)
	}
	if cfg.Sync.BatchSize != 200 {
		t.Errorf("batch size = %d", cfg.Sync.BatchSize)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENTSYNC_MARKET__CITY", "Aarhus")
	t.Setenv("EVENTSYNC_SYNC__INTERVAL", "1h")
	t.Setenv("EVENTSYNC_SYNC__RUN_ON_START", "true")
	t.Setenv("EVENTSYNC_LOG__LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.City != "Aarhus" {
		t.Errorf("city = %q", cfg.Market.City)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Errorf("interval = %v", cfg.Sync.Interval)
	}
	if !cfg.Sync.RunOnStart {
		t.Error("run_on_start not set")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
}

func TestLoadClampsPageSize(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"5", 20},
		{"1000", 200},
		{"150", 150},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			setRequired(t)
			t.Setenv("EVENTSYNC_UPSTREAM__PAGE_SIZE", tc.in)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Upstream.PageSize != tc.want {
				t.Errorf("page size = %d, want %d", cfg.Upstream.PageSize, tc.want)
			}
		})
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENTSYNC_UPSTREAM__API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if !strings.Contains(err.Error(), "upstream.api_key") {
		t.Errorf("error does not name the missing key: %v", err)
	}
}

func TestEnvToPath(t *testing.T) {
	if got := envToPath("EVENTSYNC_UPSTREAM__API_KEY"); got != "upstream.api_key" {
		t.Errorf("got %q", got)
	}
	if got := envToPath("EVENTSYNC_SYNC__RUN_ON_START"); got != "sync.run_on_start" {
		t.Errorf("got %q", got)
	}
}
