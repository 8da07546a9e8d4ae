// Package engine is the Ledger & Timer Engine: the single mutation point for
// balances, cooldowns, production cycles, loans and elections. Every mutating
// operation runs as one store transaction (lock, validate, write, commit);
// notifications go out only after the commit.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/config"
	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// Notifier is the outbound boundary to the presentation adapter. Delivery is
// best-effort; implementations must not block on failure.
type Notifier interface {
	Notify(accountID int64, text string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(int64, string) {}

// Engine owns the game's state transitions.
type Engine struct {
	store    *store.Store
	cat      *catalog.Catalog
	eco      config.Economy
	election config.Election
	notifier Notifier

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs an Engine. A nil notifier disables notifications.
func New(st *store.Store, cat *catalog.Catalog, eco config.Economy, elec config.Election, n Notifier) *Engine {
	if n == nil {
		n = noopNotifier{}
	}
	return &Engine{
		store:    st,
		cat:      cat,
		eco:      eco,
		election: elec,
		notifier: n,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed reseeds the random source. Tests use this for reproducible rolls.
func (e *Engine) Seed(seed int64) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng = rand.New(rand.NewSource(seed))
}

func (e *Engine) roll() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.roll()*(hi-lo)
}

// GetOrCreateAccount loads an account, creating it with the starting balance
// on first contact. Called once per inbound request by the adapter.
func (e *Engine) GetOrCreateAccount(ctx context.Context, id int64, username string, now time.Time) (*model.Account, error) {
	var out *model.Account
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			a = &model.Account{
				ID:        id,
				Username:  username,
				Cash:      e.eco.StartingCash,
				JobLevel:  1,
				CreatedAt: now,
			}
			if err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
			out = a
			return nil
		}
		if username != "" && username != a.Username {
			a.Username = username
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AccountSnapshot is a read-only view of an account and its holdings.
type AccountSnapshot struct {
	Account    *model.Account
	Loans      []*model.Loan
	Businesses []*model.OwnedBusiness
	TotalDebt  int64
	TaxRate    float64
	LoanRate   float64
	Treasury   int64
}

// GetAccountSnapshot assembles the profile view. It is pure: viewing never
// advances production state or any other timer.
func (e *Engine) GetAccountSnapshot(ctx context.Context, id int64, now time.Time) (*AccountSnapshot, error) {
	a, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	loans, err := e.store.ActiveLoans(ctx, id)
	if err != nil {
		return nil, err
	}
	bizs, err := e.store.Businesses(ctx, id)
	if err != nil {
		return nil, err
	}
	elec, err := e.store.CurrentElection(ctx)
	if err != nil {
		return nil, err
	}
	treasury, err := e.store.TreasuryBalance(ctx)
	if err != nil {
		return nil, err
	}

	var debt int64
	for _, l := range loans {
		debt += l.TotalDue(now, e.eco.LoanCycle())
	}
	return &AccountSnapshot{
		Account:    a,
		Loans:      loans,
		Businesses: bizs,
		TotalDebt:  debt,
		TaxRate:    elec.TaxRate,
		LoanRate:   elec.LoanRate,
		Treasury:   treasury,
	}, nil
}

// requireAccount loads a locked account row or reports ErrNotFound; banned
// accounts are rejected outright.
func requireAccount(ctx context.Context, tx *store.Tx, id int64) (*model.Account, error) {
	a, err := tx.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if a.Banned {
		return nil, ErrPermissionDenied
	}
	return a, nil
}

// addTreasury adjusts the treasury balance under its row lock.
func addTreasury(ctx context.Context, tx *store.Tx, delta int64) error {
	balance, err := tx.Treasury(ctx)
	if err != nil {
		return err
	}
	return tx.SetTreasury(ctx, balance+delta)
}

// truncPct derives an integer fee from a percentage, truncating toward zero.
// Used for every percentage-derived amount so rounding stays uniform.
func truncPct(amount int64, rate float64) int64 {
	return int64(float64(amount) * rate)
}
