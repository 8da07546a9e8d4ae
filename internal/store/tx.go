package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
)

// Tx is a transaction-scoped row accessor. Reads performed through it
// participate in the dialect's locking discipline.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

const accountCols = `id, username, cash, bank, job_level, is_admin, is_owner, is_president, banned, arrest_until, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var arrest sql.NullInt64
	var createdAt int64
	err := row.Scan(&a.ID, &a.Username, &a.Cash, &a.Bank, &a.JobLevel,
		&a.IsAdmin, &a.IsOwner, &a.IsPresident, &a.Banned, &arrest, &createdAt)
	if err != nil {
		return nil, err
	}
	a.ArrestUntil = timePtr(arrest)
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// Account fetches an account with a row lock. Returns nil, nil when absent.
func (t *Tx) Account(ctx context.Context, id int64) (*model.Account, error) {
	row := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT `+accountCols+` FROM accounts WHERE id = ?`)+t.s.forUpdate(), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select account", err)
	}
	return a, nil
}

// CreateAccount inserts a new account row.
func (t *Tx) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := t.tx.ExecContext(ctx, t.s.q(`INSERT INTO accounts
		(id, username, cash, bank, job_level, is_admin, is_owner, is_president, banned, arrest_until, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		a.ID, a.Username, a.Cash, a.Bank, a.JobLevel,
		a.IsAdmin, a.IsOwner, a.IsPresident, a.Banned, nullTime(a.ArrestUntil), a.CreatedAt.Unix())
	if err != nil {
		return storeErr("insert account", err)
	}
	return nil
}

// SaveAccount writes back every mutable account field.
func (t *Tx) SaveAccount(ctx context.Context, a *model.Account) error {
	_, err := t.tx.ExecContext(ctx, t.s.q(`UPDATE accounts SET
		username = ?, cash = ?, bank = ?, job_level = ?,
		is_admin = ?, is_owner = ?, is_president = ?, banned = ?, arrest_until = ?
		WHERE id = ?`),
		a.Username, a.Cash, a.Bank, a.JobLevel,
		a.IsAdmin, a.IsOwner, a.IsPresident, a.Banned, nullTime(a.ArrestUntil), a.ID)
	if err != nil {
		return storeErr("update account", err)
	}
	return nil
}

// ClearPresident drops the president flag from whichever account holds it.
func (t *Tx) ClearPresident(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx,
		t.s.q(`UPDATE accounts SET is_president = ? WHERE is_president = ?`), false, true); err != nil {
		return storeErr("clear president", err)
	}
	return nil
}

// Cooldown returns when the account last performed the action, nil if never.
func (t *Tx) Cooldown(ctx context.Context, accountID int64, kind model.ActionKind) (*time.Time, error) {
	var at int64
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT performed_at FROM cooldowns WHERE account_id = ? AND kind = ?`)+t.s.forUpdate(),
		accountID, string(kind)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select cooldown", err)
	}
	ts := time.Unix(at, 0)
	return &ts, nil
}

// SetCooldown upserts the last-performed marker.
func (t *Tx) SetCooldown(ctx context.Context, accountID int64, kind model.ActionKind, at time.Time) error {
	query := `INSERT INTO cooldowns (account_id, kind, performed_at) VALUES (?,?,?)
		ON CONFLICT (account_id, kind) DO UPDATE SET performed_at = excluded.performed_at`
	if _, err := t.tx.ExecContext(ctx, t.s.q(query), accountID, string(kind), at.Unix()); err != nil {
		return storeErr("set cooldown", err)
	}
	return nil
}

const loanCols = `id, account_id, principal, rate, issued_at, due_at, paid, penalty_cycles`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
	var l model.Loan
	var issued, due int64
	err := row.Scan(&l.ID, &l.AccountID, &l.Principal, &l.Rate, &issued, &due, &l.Paid, &l.PenaltyCyclesCharged)
	if err != nil {
		return nil, err
	}
	l.IssuedAt = time.Unix(issued, 0)
	l.DueAt = time.Unix(due, 0)
	return &l, nil
}

// Loan fetches one loan with a row lock. Returns nil, nil when absent.
func (t *Tx) Loan(ctx context.Context, id int64) (*model.Loan, error) {
	row := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT `+loanCols+` FROM loans WHERE id = ?`)+t.s.forUpdate(), id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select loan", err)
	}
	return l, nil
}

// CountActiveLoans counts unpaid loans held by the account.
func (t *Tx) CountActiveLoans(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT COUNT(*) FROM loans WHERE account_id = ? AND paid = ?`), accountID, false).Scan(&n)
	if err != nil {
		return 0, storeErr("count loans", err)
	}
	return n, nil
}

// InsertLoan creates a loan and fills in its assigned id.
func (t *Tx) InsertLoan(ctx context.Context, l *model.Loan) error {
	query := `INSERT INTO loans (account_id, principal, rate, issued_at, due_at, paid, penalty_cycles)
		VALUES (?,?,?,?,?,?,?)`
	args := []any{l.AccountID, l.Principal, l.Rate, l.IssuedAt.Unix(), l.DueAt.Unix(), l.Paid, l.PenaltyCyclesCharged}

	if t.s.dialect == DialectPostgres {
		err := t.tx.QueryRowContext(ctx, t.s.q(query+` RETURNING id`), args...).Scan(&l.ID)
		if err != nil {
			return storeErr("insert loan", err)
		}
		return nil
	}
	res, err := t.tx.ExecContext(ctx, t.s.q(query), args...)
	if err != nil {
		return storeErr("insert loan", err)
	}
	l.ID, err = res.LastInsertId()
	if err != nil {
		return storeErr("insert loan id", err)
	}
	return nil
}

// SaveLoan writes back the loan's mutable fields.
func (t *Tx) SaveLoan(ctx context.Context, l *model.Loan) error {
	_, err := t.tx.ExecContext(ctx,
		t.s.q(`UPDATE loans SET paid = ?, penalty_cycles = ? WHERE id = ?`),
		l.Paid, l.PenaltyCyclesCharged, l.ID)
	if err != nil {
		return storeErr("update loan", err)
	}
	return nil
}

const businessCols = `id, account_id, type_id, count, level, stock, state, started_at`

func scanBusiness(row interface{ Scan(...any) error }) (*model.OwnedBusiness, error) {
	var b model.OwnedBusiness
	var state string
	var started sql.NullInt64
	err := row.Scan(&b.ID, &b.AccountID, &b.TypeID, &b.Count, &b.Level, &b.Stock, &state, &started)
	if err != nil {
		return nil, err
	}
	b.State = model.ProductionState(state)
	b.StartedAt = timePtr(started)
	return &b, nil
}

// Business fetches one owned business with a row lock. Returns nil, nil when absent.
func (t *Tx) Business(ctx context.Context, id int64) (*model.OwnedBusiness, error) {
	row := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT `+businessCols+` FROM businesses WHERE id = ?`)+t.s.forUpdate(), id)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select business", err)
	}
	return b, nil
}

// BusinessByType fetches the account's holding of a business type, locked.
func (t *Tx) BusinessByType(ctx context.Context, accountID int64, typeID int) (*model.OwnedBusiness, error) {
	row := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT `+businessCols+` FROM businesses WHERE account_id = ? AND type_id = ?`)+t.s.forUpdate(),
		accountID, typeID)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select business by type", err)
	}
	return b, nil
}

// BusinessesOf returns all businesses owned by the account, locked.
func (t *Tx) BusinessesOf(ctx context.Context, accountID int64) ([]*model.OwnedBusiness, error) {
	rows, err := t.tx.QueryContext(ctx,
		t.s.q(`SELECT `+businessCols+` FROM businesses WHERE account_id = ? ORDER BY id`)+t.s.forUpdate(),
		accountID)
	if err != nil {
		return nil, storeErr("select businesses", err)
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func collectBusinesses(rows *sql.Rows) ([]*model.OwnedBusiness, error) {
	var out []*model.OwnedBusiness
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, storeErr("scan business", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate businesses", err)
	}
	return out, nil
}

// InsertBusiness creates an owned-business row and fills in its id.
func (t *Tx) InsertBusiness(ctx context.Context, b *model.OwnedBusiness) error {
	query := `INSERT INTO businesses (account_id, type_id, count, level, stock, state, started_at)
		VALUES (?,?,?,?,?,?,?)`
	args := []any{b.AccountID, b.TypeID, b.Count, b.Level, b.Stock, string(b.State), nullTime(b.StartedAt)}

	if t.s.dialect == DialectPostgres {
		err := t.tx.QueryRowContext(ctx, t.s.q(query+` RETURNING id`), args...).Scan(&b.ID)
		if err != nil {
			return storeErr("insert business", err)
		}
		return nil
	}
	res, err := t.tx.ExecContext(ctx, t.s.q(query), args...)
	if err != nil {
		return storeErr("insert business", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return storeErr("insert business id", err)
	}
	return nil
}

// SaveBusiness writes back the business's mutable fields.
func (t *Tx) SaveBusiness(ctx context.Context, b *model.OwnedBusiness) error {
	_, err := t.tx.ExecContext(ctx, t.s.q(`UPDATE businesses SET
		count = ?, level = ?, stock = ?, state = ?, started_at = ? WHERE id = ?`),
		b.Count, b.Level, b.Stock, string(b.State), nullTime(b.StartedAt), b.ID)
	if err != nil {
		return storeErr("update business", err)
	}
	return nil
}

// MarketPrices returns every market price row, locked.
func (t *Tx) MarketPrices(ctx context.Context) ([]*model.MarketPrice, error) {
	rows, err := t.tx.QueryContext(ctx,
		t.s.q(`SELECT item_id, price FROM market_prices ORDER BY item_id`)+t.s.forUpdate())
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

// MarketPrice returns one item's current price, locked. Returns nil, nil when absent.
func (t *Tx) MarketPrice(ctx context.Context, itemID int) (*model.MarketPrice, error) {
	var p model.MarketPrice
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT item_id, price FROM market_prices WHERE item_id = ?`)+t.s.forUpdate(),
		itemID).Scan(&p.ItemID, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select market price", err)
	}
	return &p, nil
}

// SaveMarketPrice writes back an item's price.
func (t *Tx) SaveMarketPrice(ctx context.Context, p *model.MarketPrice) error {
	_, err := t.tx.ExecContext(ctx,
		t.s.q(`UPDATE market_prices SET price = ? WHERE item_id = ?`), p.Price, p.ItemID)
	if err != nil {
		return storeErr("update market price", err)
	}
	return nil
}

// Rates reads the current tax and loan rates without taking the election row
// lock. Money flows use this so they never wait on election flows.
func (t *Tx) Rates(ctx context.Context) (taxRate, loanRate float64, err error) {
	err = t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT tax_rate, loan_rate FROM election WHERE id = 1`)).Scan(&taxRate, &loanRate)
	if err != nil {
		return 0, 0, storeErr("select rates", err)
	}
	return taxRate, loanRate, nil
}

// Election fetches the singleton election row with a lock. Mutating flows
// acquire it first, which also serializes candidate/vote writes.
func (t *Tx) Election(ctx context.Context) (*model.ElectionState, error) {
	var e model.ElectionState
	var phase string
	var phaseEnd, president sql.NullInt64
	var lastAt int64
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT cycle, phase, tax_rate, loan_rate, phase_ends_at, last_election_at, president_id
			FROM election WHERE id = 1`)+t.s.forUpdate()).
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

// SaveElection writes back the singleton election row.
func (t *Tx) SaveElection(ctx context.Context, e *model.ElectionState) error {
	_, err := t.tx.ExecContext(ctx, t.s.q(`UPDATE election SET
		cycle = ?, phase = ?, tax_rate = ?, loan_rate = ?, phase_ends_at = ?, last_election_at = ?, president_id = ?
		WHERE id = 1`),
		e.Cycle, string(e.Phase), e.TaxRate, e.LoanRate,
		nullTime(e.PhaseEndsAt), e.LastElectionAt.Unix(), nullID(e.PresidentID))
	if err != nil {
		return storeErr("update election", err)
	}
	return nil
}

// Candidate fetches one candidate row for the cycle. Returns nil, nil when absent.
func (t *Tx) Candidate(ctx context.Context, cycle, accountID int64) (*model.Candidate, error) {
	var c model.Candidate
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT cycle, account_id, votes FROM candidates WHERE cycle = ? AND account_id = ?`)+t.s.forUpdate(),
		cycle, accountID).Scan(&c.Cycle, &c.AccountID, &c.Votes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select candidate", err)
	}
	return &c, nil
}

// Candidates returns every candidate of the cycle ordered by votes descending,
// ties broken by lowest account id.
func (t *Tx) Candidates(ctx context.Context, cycle int64) ([]*model.Candidate, error) {
	rows, err := t.tx.QueryContext(ctx,
		t.s.q(`SELECT cycle, account_id, votes FROM candidates WHERE cycle = ? ORDER BY votes DESC, account_id ASC`),
		cycle)
	if err != nil {
		return nil, storeErr("select candidates", err)
	}
	defer rows.Close()
	var out []*model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.Cycle, &c.AccountID, &c.Votes); err != nil {
			return nil, storeErr("scan candidate", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate candidates", err)
	}
	return out, nil
}

// InsertCandidate registers a candidate for the cycle.
func (t *Tx) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	_, err := t.tx.ExecContext(ctx,
		t.s.q(`INSERT INTO candidates (cycle, account_id, votes) VALUES (?,?,?)`),
		c.Cycle, c.AccountID, c.Votes)
	if err != nil {
		return storeErr("insert candidate", err)
	}
	return nil
}

// AddVote increments a candidate's vote count.
func (t *Tx) AddVote(ctx context.Context, cycle, candidateID int64) error {
	res, err := t.tx.ExecContext(ctx,
		t.s.q(`UPDATE candidates SET votes = votes + 1 WHERE cycle = ? AND account_id = ?`),
		cycle, candidateID)
	if err != nil {
		return storeErr("add vote", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr("add vote", sql.ErrNoRows)
	}
	return nil
}

// VoteExists reports whether the account already voted in the cycle.
func (t *Tx) VoteExists(ctx context.Context, cycle, voterID int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT COUNT(*) FROM votes WHERE cycle = ? AND voter_id = ?`), cycle, voterID).Scan(&n)
	if err != nil {
		return false, storeErr("select vote", err)
	}
	return n > 0, nil
}

// InsertVote records a ballot for the cycle.
func (t *Tx) InsertVote(ctx context.Context, cycle, voterID, candidateID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		t.s.q(`INSERT INTO votes (cycle, voter_id, candidate_id, cast_at) VALUES (?,?,?,?)`),
		cycle, voterID, candidateID, at.Unix())
	if err != nil {
		return storeErr("insert vote", err)
	}
	return nil
}

// Treasury returns the pooled treasury balance, locked.
func (t *Tx) Treasury(ctx context.Context) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx,
		t.s.q(`SELECT balance FROM treasury WHERE id = 1`)+t.s.forUpdate()).Scan(&balance)
	if err != nil {
		return 0, storeErr("select treasury", err)
	}
	return balance, nil
}

// SetTreasury writes the treasury balance.
func (t *Tx) SetTreasury(ctx context.Context, balance int64) error {
	if _, err := t.tx.ExecContext(ctx,
		t.s.q(`UPDATE treasury SET balance = ? WHERE id = 1`), balance); err != nil {
		return storeErr("update treasury", err)
	}
	return nil
}
