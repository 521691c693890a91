package app_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/app"
	"fintrack/internal/config"
	"fintrack/internal/migrate"
)

func TestOpenUsesDefaultsWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	ws, err := app.Open(app.Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ws.Close()

	if ws.Config.Timezone != "Asia/Tashkent" || ws.Config.Reminders.OverdueThrottle != 8*time.Hour {
		t.Fatalf("expected default config, got %+v", ws.Config)
	}
	latest, _ := migrate.Latest()
	if v, err := migrate.Version(ws.DB); err != nil || v != latest {
		t.Fatalf("schema version %d (want %d): %v", v, latest, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".fintrack", "fintrack.db")); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	yml := "timezone: UTC\nreminders:\n  overdue_throttle: 2h\n"
	if err := os.WriteFile(config.Path(dir), []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ws, err := app.Open(app.Options{Workspace: dir, ConfigRequired: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ws.Close()
	if ws.Config.Timezone != "UTC" || ws.Config.Reminders.OverdueThrottle != 2*time.Hour {
		t.Fatalf("config not loaded: %+v", ws.Config.Reminders)
	}
	if ws.Config.Ledger.PaymentCategory != "Payment" {
		t.Fatalf("missing keys should keep defaults")
	}
	if ws.Engine.Config != ws.Config {
		t.Fatalf("engine should share the workspace config")
	}
	if m := ws.EnableMetrics(); m == nil || ws.Engine.Metrics != m {
		t.Fatalf("metrics not attached")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("timezone: Mars/Olympus\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := app.Open(app.Options{Workspace: dir}); err == nil {
		t.Fatalf("expected invalid timezone error")
	}
	if _, err := os.Stat(filepath.Join(dir, ".fintrack")); !os.IsNotExist(err) {
		t.Fatalf("database must not be created for a broken config")
	}
}

func TestOpenRequiresConfigWhenAsked(t *testing.T) {
	_, err := app.Open(app.Options{Workspace: t.TempDir(), ConfigRequired: true})
	if err == nil || !strings.Contains(err.Error(), "ft config init") {
		t.Fatalf("expected missing config hint, got %v", err)
	}
}
