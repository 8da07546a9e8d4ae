package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Economy holds the tunable game-economy constants.
type Economy struct {
	StartingCash         int64   `yaml:"starting_cash"`
	DailyBonus           int64   `yaml:"daily_bonus"`
	WorkReward           int64   `yaml:"work_reward"`
	CasinoMinBet         int64   `yaml:"casino_min_bet"`
	CrimeFineMult        float64 `yaml:"crime_fine_mult"`
	JailMinutes          int     `yaml:"jail_minutes"`
	WorkCooldownMinutes  int     `yaml:"work_cooldown_minutes"`
	DailyCooldownHours   int     `yaml:"daily_cooldown_hours"`
	CrimeCooldownHours   int     `yaml:"crime_cooldown_hours"`
	ProductionCycleHours int     `yaml:"production_cycle_hours"`
	LoanMin              int64   `yaml:"loan_min"`
	LoanCapMult          int64   `yaml:"loan_cap_mult"`
	LoanMaxActive        int     `yaml:"loan_max_active"`
	LoanCycleHours       int     `yaml:"loan_cycle_hours"`
	LoanPenaltyCycleDays int     `yaml:"loan_penalty_cycle_days"`
	LoanTreasuryShare    float64 `yaml:"loan_treasury_share"`
	TaxMax               float64 `yaml:"tax_max"`
	DefaultTaxRate       float64 `yaml:"default_tax_rate"`
	DefaultLoanRate      float64 `yaml:"default_loan_rate"`
	TreasurySeed         int64   `yaml:"treasury_seed"`
}

// Election holds election timing.
type Election struct {
	IntervalDays   int `yaml:"interval_days"`
	CandidacyHours int `yaml:"candidacy_hours"`
	VotingHours    int `yaml:"voting_hours"`
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
	Database struct {
		Dialect     string `yaml:"dialect"` // "sqlite" or "postgres"
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
		AuditPath   string `yaml:"audit_path"` // empty disables the audit trail
	} `yaml:"database"`
	Schedule struct {
		SweepCron string `yaml:"sweep_cron"`
	} `yaml:"schedule"`
	Economy  Economy  `yaml:"economy"`
	Election Election `yaml:"election"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("DB_DIALECT"); v != "" {
		cfg.Database.Dialect = v
	}
	if v := os.Getenv("DB_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DB_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Database.PostgresDSN == "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("SWEEP_CRON"); v != "" {
		cfg.Schedule.SweepCron = v
	}
	if v := os.Getenv("AUDIT_DB_PATH"); v != "" {
		cfg.Database.AuditPath = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Dialect == "" {
		c.Database.Dialect = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/bongocity.db"
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "0 */15 * * * *"
	}

	e := &c.Economy
	if e.StartingCash == 0 {
		e.StartingCash = 10000
	}
	if e.DailyBonus == 0 {
		e.DailyBonus = 10000
	}
	if e.WorkReward == 0 {
		e.WorkReward = 1500
	}
	if e.CasinoMinBet == 0 {
		e.CasinoMinBet = 1000
	}
	if e.CrimeFineMult == 0 {
		e.CrimeFineMult = 1.5
	}
	if e.JailMinutes == 0 {
		e.JailMinutes = 60
	}
	if e.WorkCooldownMinutes == 0 {
		e.WorkCooldownMinutes = 60
	}
	if e.DailyCooldownHours == 0 {
		e.DailyCooldownHours = 24
	}
	if e.CrimeCooldownHours == 0 {
		e.CrimeCooldownHours = 6
	}
	if e.ProductionCycleHours == 0 {
		e.ProductionCycleHours = 2
	}
	if e.LoanMin == 0 {
		e.LoanMin = 10000
	}
	if e.LoanCapMult == 0 {
		e.LoanCapMult = 5
	}
	if e.LoanMaxActive == 0 {
		e.LoanMaxActive = 3
	}
	if e.LoanCycleHours == 0 {
		e.LoanCycleHours = 24
	}
	if e.LoanPenaltyCycleDays == 0 {
		e.LoanPenaltyCycleDays = 7
	}
	if e.LoanTreasuryShare == 0 {
		e.LoanTreasuryShare = 1.0
	}
	if e.TaxMax == 0 {
		e.TaxMax = 0.50
	}
	if e.DefaultTaxRate == 0 {
		e.DefaultTaxRate = 0.10
	}
	if e.DefaultLoanRate == 0 {
		e.DefaultLoanRate = 0.01
	}
	if e.TreasurySeed == 0 {
		e.TreasurySeed = 1000000
	}

	el := &c.Election
	if el.IntervalDays == 0 {
		el.IntervalDays = 14
	}
	if el.CandidacyHours == 0 {
		el.CandidacyHours = 24
	}
	if el.VotingHours == 0 {
		el.VotingHours = 24
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	switch c.Database.Dialect {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.dialect %q", c.Database.Dialect)
	}
	if c.Economy.TaxMax <= 0 || c.Economy.TaxMax > 1 {
		return fmt.Errorf("economy.tax_max must be in (0, 1]")
	}
	if c.Economy.LoanTreasuryShare < 0 || c.Economy.LoanTreasuryShare > 1 {
		return fmt.Errorf("economy.loan_treasury_share must be in [0, 1]")
	}
	return nil
}

// Cooldown returns the cooldown duration for an action kind, zero if unknown.
func (e *Economy) Cooldown(kind string) time.Duration {
	switch kind {
	case "work":
		return time.Duration(e.WorkCooldownMinutes) * time.Minute
	case "daily":
		return time.Duration(e.DailyCooldownHours) * time.Hour
	case "crime":
		return time.Duration(e.CrimeCooldownHours) * time.Hour
	}
	return 0
}

// ProductionCycle is the fixed duration of one production cycle.
func (e *Economy) ProductionCycle() time.Duration {
	return time.Duration(e.ProductionCycleHours) * time.Hour
}

// LoanCycle is the discrete interest accrual unit.
func (e *Economy) LoanCycle() time.Duration {
	return time.Duration(e.LoanCycleHours) * time.Hour
}

// LoanPenaltyCycle is how often an overdue loan is fined.
func (e *Economy) LoanPenaltyCycle() time.Duration {
	return time.Duration(e.LoanPenaltyCycleDays) * 24 * time.Hour
}

// JailTime is how long a failed crime jails the account.
func (e *Economy) JailTime() time.Duration {
	return time.Duration(e.JailMinutes) * time.Minute
}

// Interval is the minimum time between elections.
func (e *Election) Interval() time.Duration {
	return time.Duration(e.IntervalDays) * 24 * time.Hour
}

// CandidacyWindow is how long candidate registration stays open.
func (e *Election) CandidacyWindow() time.Duration {
	return time.Duration(e.CandidacyHours) * time.Hour
}

// VotingWindow is how long the voting phase lasts.
func (e *Election) VotingWindow() time.Duration {
	return time.Duration(e.VotingHours) * time.Hour
}
