// Package store owns the relational schema and all row access. Mutating
// callers go through WithTx, which provides the locking discipline: sqlite
// transactions are opened immediate (single writer), postgres row reads
// inside a Tx append FOR UPDATE.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/config"
)

// ErrUnavailable marks persistence-layer failures (connection loss, lock
// timeout). The triggering action is not applied and is safe to retry.
var ErrUnavailable = errors.New("storage unavailable")

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store wraps the database handle.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the configured database, runs migrations, and seeds the
// singleton rows (election state, treasury, market prices).
func Open(cfg *config.Config, cat *catalog.Catalog) (*Store, error) {
	var driverName, dsn string
	dialect := Dialect(cfg.Database.Dialect)

	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		path := cfg.Database.SQLitePath
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		// Immediate transactions take the write lock at BEGIN, so a
		// read-validate-write sequence can never see stale rows.
		dsn = "file:" + path + "?_txlock=immediate"
	case DialectPostgres:
		driverName = "pgx"
		dsn = cfg.Database.PostgresDSN
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Database.Dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &Store{db: db, dialect: dialect}

	if dialect == DialectSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seed(cfg, cat); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	log.Printf("[INFO] store opened: dialect=%s", dialect)
	return s, nil
}

func (s *Store) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            BIGINT PRIMARY KEY,
			username      TEXT NOT NULL DEFAULT '',
			cash          BIGINT NOT NULL DEFAULT 0,
			bank          BIGINT NOT NULL DEFAULT 0,
			job_level     INTEGER NOT NULL DEFAULT 1,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			is_owner      INTEGER NOT NULL DEFAULT 0,
			is_president  INTEGER NOT NULL DEFAULT 0,
			banned        INTEGER NOT NULL DEFAULT 0,
			arrest_until  BIGINT,
			created_at    BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS cooldowns (
			account_id    BIGINT NOT NULL,
			kind          TEXT NOT NULL,
			performed_at  BIGINT NOT NULL,
			PRIMARY KEY (account_id, kind)
		)`,

		`CREATE TABLE IF NOT EXISTS loans (
			id             ` + serial + `,
			account_id     BIGINT NOT NULL,
			principal      BIGINT NOT NULL,
			rate           DOUBLE PRECISION NOT NULL,
			issued_at      BIGINT NOT NULL,
			due_at         BIGINT NOT NULL,
			paid           INTEGER NOT NULL DEFAULT 0,
			penalty_cycles BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_account ON loans(account_id, paid)`,

		`CREATE TABLE IF NOT EXISTS businesses (
			id          ` + serial + `,
			account_id  BIGINT NOT NULL,
			type_id     INTEGER NOT NULL,
			count       INTEGER NOT NULL DEFAULT 1,
			level       INTEGER NOT NULL DEFAULT 1,
			stock       BIGINT NOT NULL DEFAULT 0,
			state       TEXT NOT NULL DEFAULT 'IDLE',
			started_at  BIGINT,
			UNIQUE (account_id, type_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_businesses_state ON businesses(state)`,

		`CREATE TABLE IF NOT EXISTS market_prices (
			item_id  INTEGER PRIMARY KEY,
			price    BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS election (
			id               INTEGER PRIMARY KEY,
			cycle            BIGINT NOT NULL DEFAULT 0,
			phase            TEXT NOT NULL DEFAULT 'IDLE',
			tax_rate         DOUBLE PRECISION NOT NULL,
			loan_rate        DOUBLE PRECISION NOT NULL,
			phase_ends_at    BIGINT,
			last_election_at BIGINT NOT NULL DEFAULT 0,
			president_id     BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS candidates (
			cycle       BIGINT NOT NULL,
			account_id  BIGINT NOT NULL,
			votes       INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (cycle, account_id)
		)`,

		`CREATE TABLE IF NOT EXISTS votes (
			cycle         BIGINT NOT NULL,
			voter_id      BIGINT NOT NULL,
			candidate_id  BIGINT NOT NULL,
			cast_at       BIGINT NOT NULL,
			PRIMARY KEY (cycle, voter_id)
		)`,

		`CREATE TABLE IF NOT EXISTS treasury (
			id       INTEGER PRIMARY KEY,
			balance  BIGINT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) seed(cfg *config.Config, cat *catalog.Catalog) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM treasury`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(s.q(`INSERT INTO treasury (id, balance) VALUES (1, ?)`),
			cfg.Economy.TreasurySeed); err != nil {
			return err
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM election`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(s.q(`INSERT INTO election (id, cycle, phase, tax_rate, loan_rate, last_election_at)
			VALUES (1, 0, 'IDLE', ?, ?, 0)`),
			cfg.Economy.DefaultTaxRate, cfg.Economy.DefaultLoanRate); err != nil {
			return err
		}
	}

	for _, item := range cat.Items {
		if err := s.db.QueryRow(s.q(`SELECT COUNT(*) FROM market_prices WHERE item_id = ?`), item.ID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			if _, err := s.db.Exec(s.q(`INSERT INTO market_prices (item_id, price) VALUES (?, ?)`),
				item.ID, item.BasePrice); err != nil {
				return err
			}
		}
	}
	return nil
}

// q rewrites ? placeholders to $n for postgres.
func (s *Store) q(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate is the row-lock suffix for reads inside a mutating transaction.
func (s *Store) forUpdate() string {
	if s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// WithTx runs fn inside a transaction. Domain errors returned by fn pass
// through untouched and roll the transaction back; begin/commit failures are
// reported as ErrUnavailable.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	if err := fn(&Tx{tx: dbTx, s: s}); err != nil {
		dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	log.Println("[INFO] closing store")
	return s.db.Close()
}
