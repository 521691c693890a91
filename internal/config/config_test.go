package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Reminders.OverdueThrottle != 8*time.Hour {
		t.Fatalf("expected 8h throttle, got %s", cfg.Reminders.OverdueThrottle)
	}
	if cfg.Location().String() != "Asia/Tashkent" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("timezone: UTC\nreminders:\n  overdue_throttle: 2h\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Reminders.OverdueThrottle != 2*time.Hour {
		t.Fatalf("throttle not applied: %s", cfg.Reminders.OverdueThrottle)
	}
	if cfg.Ledger.PaymentCategory != "Payment" || cfg.Ledger.BalanceLookbackMonths != 12 {
		t.Fatalf("defaults lost: %+v", cfg.Ledger)
	}
	if len(cfg.Reminders.DailySummaryAt) != 1 || cfg.Reminders.DailySummaryAt[0] != "23:00" {
		t.Fatalf("daily summary default lost: %v", cfg.Reminders.DailySummaryAt)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad timezone":   "timezone: Mars/Olympus\n",
		"bad clock":      "reminders:\n  overdue_at: [\"25:00\"]\n",
		"bad summary":    "reminders:\n  daily_summary_at: [\"11pm\"]\n",
		"zero lookback":  "ledger:\n  balance_lookback_months: 0\n",
		"webhook no url": "notify:\n  webhooks:\n    - secret: x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected default config, got %v %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fintrack.yml"), []byte("timezone: UTC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("expected UTC, got %s", cfg.Timezone)
	}
}
