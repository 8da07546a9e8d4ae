package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
)

// Read-only accessors for snapshot queries. These never lock rows and never
// mutate; production state in particular is reported as stored.

// GetAccount returns an account or nil, nil when absent.
func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+accountCols+` FROM accounts WHERE id = ?`), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select account", err)
	}
	return a, nil
}

// ActiveLoans returns the account's unpaid loans.
func (s *Store) ActiveLoans(ctx context.Context, accountID int64) ([]*model.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+loanCols+` FROM loans WHERE account_id = ? AND paid = ? ORDER BY id`),
		accountID, false)
	if err != nil {
		return nil, storeErr("select active loans", err)
	}
	defer rows.Close()
	var out []*model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, storeErr("scan loan", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate loans", err)
	}
	return out, nil
}

// Businesses returns the account's owned businesses.
func (s *Store) Businesses(ctx context.Context, accountID int64) ([]*model.OwnedBusiness, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+businessCols+` FROM businesses WHERE account_id = ? ORDER BY id`), accountID)
	if err != nil {
		return nil, storeErr("select businesses", err)
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

// Prices returns the current market prices.
func (s *Store) Prices(ctx context.Context) ([]*model.MarketPrice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, price FROM market_prices ORDER BY item_id`)
	if err != nil {
		return nil, storeErr("select market prices", err)
	}
	defer rows.Close()
	var out []*model.MarketPrice
	for rows.Next() {
		var p model.MarketPrice
		if err := rows.Scan(&p.ItemID, &p.Price); err != nil {
			return nil, storeErr("scan market price", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate market prices", err)
	}
	return out, nil
}

// CurrentElection returns the singleton election row without locking it.
func (s *Store) CurrentElection(ctx context.Context) (*model.ElectionState, error) {
	var e model.ElectionState
	var phase string
	var phaseEnd, president sql.NullInt64
	var lastAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cycle, phase, tax_rate, loan_rate, phase_ends_at, last_election_at, president_id
		 FROM election WHERE id = 1`).
		Scan(&e.Cycle, &phase, &e.TaxRate, &e.LoanRate, &phaseEnd, &lastAt, &president)
	if err != nil {
		return nil, storeErr("select election", err)
	}
	e.Phase = model.ElectionPhase(phase)
	e.PhaseEndsAt = timePtr(phaseEnd)
	e.LastElectionAt = time.Unix(lastAt, 0)
	e.PresidentID = idPtr(president)
	return &e, nil
}

// TreasuryBalance returns the pooled treasury balance.
func (s *Store) TreasuryBalance(ctx context.Context) (int64, error) {
	var balance int64
	if err := s.db.QueryRowContext(ctx, `SELECT balance FROM treasury WHERE id = 1`).Scan(&balance); err != nil {
		return 0, storeErr("select treasury", err)
	}
	return balance, nil
}

// The sweep scans candidates with unlocked id queries, then revalidates each
// row under its lock in a short per-entity transaction.

// IDPair ties a row id to the account that owns it.
type IDPair struct {
	ID        int64
	AccountID int64
}

func (s *Store) idPairs(ctx context.Context, op, query string, args ...any) ([]IDPair, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	var out []IDPair
	for rows.Next() {
		var p IDPair
		if err := rows.Scan(&p.ID, &p.AccountID); err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// DueProducingIDs lists businesses whose running cycle started at or before
// the deadline.
func (s *Store) DueProducingIDs(ctx context.Context, deadline time.Time) ([]IDPair, error) {
	return s.idPairs(ctx, "select due producing ids",
		`SELECT id, account_id FROM businesses
		 WHERE state = ? AND started_at IS NOT NULL AND started_at <= ? ORDER BY id`,
		string(model.ProductionProducing), deadline.Unix())
}

// OverdueLoanIDs lists unpaid loans past due at the given time.
func (s *Store) OverdueLoanIDs(ctx context.Context, now time.Time) ([]IDPair, error) {
	return s.idPairs(ctx, "select overdue loan ids",
		`SELECT id, account_id FROM loans WHERE paid = ? AND due_at <= ? ORDER BY id`,
		false, now.Unix())
}

// ExpiredArrestIDs lists accounts whose arrest window has passed.
func (s *Store) ExpiredArrestIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id FROM accounts WHERE arrest_until IS NOT NULL AND arrest_until <= ? ORDER BY id`),
		now.Unix())
	if err != nil {
		return nil, storeErr("select expired arrest ids", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan arrest id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate arrest ids", err)
	}
	return out, nil
}
