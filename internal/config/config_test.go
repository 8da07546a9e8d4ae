package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("dialect = %q, want sqlite", cfg.Database.Dialect)
	}
	if cfg.Schedule.SweepCron != "0 */15 * * * *" {
		t.Errorf("sweep cron = %q", cfg.Schedule.SweepCron)
	}
	if cfg.Economy.DailyBonus != 10000 {
		t.Errorf("daily bonus = %d, want 10000", cfg.Economy.DailyBonus)
	}
	if cfg.Economy.ProductionCycleHours != 2 {
		t.Errorf("production cycle = %d, want 2", cfg.Economy.ProductionCycleHours)
	}
	if cfg.Economy.TreasurySeed != 1000000 {
		t.Errorf("treasury seed = %d, want 1000000", cfg.Economy.TreasurySeed)
	}
	if cfg.Election.IntervalDays != 14 {
		t.Errorf("election interval = %d, want 14", cfg.Election.IntervalDays)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
telegram:
  bot_token: from-file
economy:
  daily_bonus: 5000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("bot token = %q, env must win", cfg.Telegram.BotToken)
	}
	if cfg.Economy.DailyBonus != 5000 {
		t.Errorf("daily bonus = %d, want 5000 from file", cfg.Economy.DailyBonus)
	}
	// Untouched fields still get defaults.
	if cfg.Economy.WorkReward != 1500 {
		t.Errorf("work reward = %d, want default 1500", cfg.Economy.WorkReward)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("validate passed without a bot token")
	}

	cfg.Telegram.BotToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	cfg.Database.Dialect = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("validate passed postgres without a DSN")
	}
	cfg.Database.PostgresDSN = "postgres://localhost/bongo"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate postgres: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e := cfg.Economy

	if got := e.Cooldown("work"); got != time.Hour {
		t.Errorf("work cooldown = %s, want 1h", got)
	}
	if got := e.Cooldown("daily"); got != 24*time.Hour {
		t.Errorf("daily cooldown = %s, want 24h", got)
	}
	if got := e.Cooldown("nope"); got != 0 {
		t.Errorf("unknown cooldown = %s, want 0", got)
	}
	if got := e.ProductionCycle(); got != 2*time.Hour {
		t.Errorf("production cycle = %s, want 2h", got)
	}
	if got := e.LoanPenaltyCycle(); got != 7*24*time.Hour {
		t.Errorf("penalty cycle = %s, want 168h", got)
	}
	if got := cfg.Election.Interval(); got != 14*24*time.Hour {
		t.Errorf("election interval = %s, want 336h", got)
	}
}
