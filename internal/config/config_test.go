package config

import (
	"testing"
	"time"
)

func TestTomlDurationRoundTrip(t *testing.T) {
	var d tomlDuration
	if err := d.UnmarshalText([]byte("45m")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if time.Duration(d) != 45*time.Minute {
		t.Errorf("parsed %v, want 45m", time.Duration(d))
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "45m0s" {
		t.Errorf("marshaled %q", text)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("accepted invalid duration")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Daemon.Addr != "127.0.0.1:7377" {
		t.Errorf("addr = %q", cfg.Daemon.Addr)
	}
	if cfg.IdleTimeout() != 30*time.Minute {
		t.Errorf("idle timeout = %v", cfg.IdleTimeout())
	}
	if cfg.CleanupInterval() != 10*time.Minute {
		t.Errorf("cleanup interval = %v", cfg.CleanupInterval())
	}
	if cfg.Search.HighlightStart != "<mark>" || cfg.Search.MaxResults != 100 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
}

func TestAnalyzerAPIKey_EnvOverridesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analyzer.APIKey = "from-config"

	if got := AnalyzerAPIKey(cfg); got != "from-config" {
		t.Errorf("key = %q, want config value", got)
	}

	t.Setenv("CODETRAIL_API_KEY", "from-env")
	if got := AnalyzerAPIKey(cfg); got != "from-env" {
		t.Errorf("key = %q, want env value", got)
	}
}

func TestDataDirPrefersConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.DataDir = "/custom/data"
	if got := DataDir(cfg); got != "/custom/data" {
		t.Errorf("DataDir = %q", got)
	}
	if got := DatabasePath(cfg); got != "/custom/data/codetrail.db" {
		t.Errorf("DatabasePath = %q", got)
	}
}
