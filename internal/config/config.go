package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models fintrack.yml.
type Config struct {
	Timezone  string          `yaml:"timezone"`
	Reminders RemindersConfig `yaml:"reminders"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Server    ServerConfig    `yaml:"server"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type RemindersConfig struct {
	OverdueThrottle time.Duration `yaml:"overdue_throttle"`
	DueTomorrowAt   []string      `yaml:"due_tomorrow_at"`
	OverdueAt       []string      `yaml:"overdue_at"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	// DailySummaryAt lists when the end-of-day expense summary goes out.
	// An empty list turns the summary off.
	DailySummaryAt  []string      `yaml:"daily_summary_at"`
}

type LedgerConfig struct {
	PaymentCategory       string `yaml:"payment_category"`
	IncomeCategory        string `yaml:"income_category"`
	BalanceLookbackMonths int    `yaml:"balance_lookback_months"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type NotifyConfig struct {
	Log      bool            `yaml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Telegram TelegramConfig  `yaml:"telegram"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Classes        []string `yaml:"classes"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ft config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config.timezone %q: %w", c.Timezone, err)
	}
	if c.Reminders.OverdueThrottle <= 0 {
		return fmt.Errorf("config.reminders.overdue_throttle must be positive")
	}
	if c.Reminders.SweepInterval < 0 {
		return fmt.Errorf("config.reminders.sweep_interval must not be negative")
	}
	clocks := append(append([]string{}, c.Reminders.DueTomorrowAt...), c.Reminders.OverdueAt...)
	for _, at := range append(clocks, c.Reminders.DailySummaryAt...) {
		if _, _, err := ParseClock(at); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Ledger.PaymentCategory) == "" {
		return fmt.Errorf("config.ledger.payment_category is required")
	}
	if strings.TrimSpace(c.Ledger.IncomeCategory) == "" {
		return fmt.Errorf("config.ledger.income_category is required")
	}
	if c.Ledger.BalanceLookbackMonths < 1 || c.Ledger.BalanceLookbackMonths > 120 {
		return fmt.Errorf("config.ledger.balance_lookback_months must be between 1 and 120")
	}
	for i, hook := range c.Notify.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notify.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notify.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	if c.Notify.Telegram.Enabled && strings.TrimSpace(c.Notify.Telegram.TokenEnv) == "" {
		return fmt.Errorf("config.notify.telegram.token_env is required when telegram is enabled")
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses a "HH:MM" wall-clock time.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "fintrack.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `timezone: Asia/Tashkent

reminders:
  overdue_throttle: 8h
  due_tomorrow_at: ["09:00"]
  overdue_at: ["09:00", "18:00"]
  sweep_interval: 1h
  daily_summary_at: ["23:00"]

ledger:
  payment_category: Payment
  income_category: Income
  balance_lookback_months: 12

server:
  addr: 127.0.0.1:8080
  base_path: /v1

notify:
  log: true
  webhooks: []
  telegram:
    enabled: false
    token_env: FINTRACK_TELEGRAM_TOKEN
`
