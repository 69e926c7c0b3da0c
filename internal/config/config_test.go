package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.SyncIntervalSeconds != 3600 {
		t.Errorf("expected default sync interval 3600, got %d", cfg.SyncIntervalSeconds)
	}
	if cfg.SyncLookbackDays != 30 {
		t.Errorf("expected default lookback 30, got %d", cfg.SyncLookbackDays)
	}
}

func TestLoad_ClampsNonPositiveSyncSettings(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_SECONDS", "0")
	t.Setenv("SYNC_LOOKBACK_DAYS", "-5")

	cfg := Load()

	if cfg.SyncIntervalSeconds != 3600 {
		t.Errorf("expected interval to clamp to 3600, got %d", cfg.SyncIntervalSeconds)
	}
	if cfg.SyncLookbackDays != 30 {
		t.Errorf("expected lookback to clamp to 30, got %d", cfg.SyncLookbackDays)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("POLYGON_IGNORE_SPREAD", "true")

	cfg := Load()

	if cfg.HTTPPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if !cfg.PolygonIgnoreSpread {
		t.Error("expected spread inversion to be enabled")
	}
}
