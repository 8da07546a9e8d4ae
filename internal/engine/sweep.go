package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// Sweep runs the periodic maintenance pass: market jitter, production
// completion, overdue-loan penalties, arrest releases and the election phase
// machine. Every step is idempotent against the persisted deadlines and
// counters, so a crashed or doubled run converges to the same state. A step
// failing is logged and never blocks the others.
func (e *Engine) Sweep(ctx context.Context, now time.Time) {
	if err := e.sweepMarket(ctx); err != nil {
		log.Printf("[ERROR] sweep: market: %v", err)
	}
	if err := e.sweepProduction(ctx, now); err != nil {
		log.Printf("[ERROR] sweep: production: %v", err)
	}
	if err := e.sweepLoans(ctx, now); err != nil {
		log.Printf("[ERROR] sweep: loans: %v", err)
	}
	if err := e.sweepArrests(ctx, now); err != nil {
		log.Printf("[ERROR] sweep: arrests: %v", err)
	}
	if err := e.sweepElection(ctx, now); err != nil {
		log.Printf("[ERROR] sweep: election: %v", err)
	}
}

// sweepMarket random-walks every market price, clamped to half the base so a
// long losing streak never makes a resource free.
func (e *Engine) sweepMarket(ctx context.Context) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		prices, err := tx.MarketPrices(ctx)
		if err != nil {
			return err
		}
		for _, p := range prices {
			item, ok := e.cat.Item(p.ItemID)
			if !ok {
				continue
			}
			next := int64(float64(p.Price) * e.uniform(1-item.Volatility, 1+item.Volatility))
			if floor := item.BasePrice / 2; next < floor {
				next = floor
			}
			p.Price = next
			if err := tx.SaveMarketPrice(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// sweepProduction flips businesses whose cycle has elapsed to Ready. One
// short transaction per business: the unlocked scan is revalidated under the
// row lock, so a concurrent collect can't be clobbered.
func (e *Engine) sweepProduction(ctx context.Context, now time.Time) error {
	deadline := now.Add(-e.eco.ProductionCycle())
	due, err := e.store.DueProducingIDs(ctx, deadline)
	if err != nil {
		return err
	}
	for _, pair := range due {
		var done bool
		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			done = false
			b, err := tx.Business(ctx, pair.ID)
			if err != nil {
				return err
			}
			if b == nil || b.State != model.ProductionProducing ||
				b.StartedAt == nil || b.StartedAt.After(deadline) {
				return nil
			}
			b.State = model.ProductionReady
			done = true
			return tx.SaveBusiness(ctx, b)
		})
		if err != nil {
			log.Printf("[ERROR] sweep: production: business %d: %v", pair.ID, err)
			continue
		}
		if done {
			e.notifier.Notify(pair.AccountID, "🏭 A production cycle finished. Collect your payout.")
		}
	}
	return nil
}

// sweepLoans fines overdue loans out of the borrower's bank balance. At most
// one newly elapsed penalty cycle is charged per sweep, and only when the
// bank covers it; the counter then fast-forwards so missed cycles are never
// charged retroactively.
func (e *Engine) sweepLoans(ctx context.Context, now time.Time) error {
	overdue, err := e.store.OverdueLoanIDs(ctx, now)
	if err != nil {
		return err
	}
	penaltyCycle := e.eco.LoanPenaltyCycle()
	for _, pair := range overdue {
		var fine int64
		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			fine = 0
			// Account first, then the loan: the same order Repay locks in.
			a, err := tx.Account(ctx, pair.AccountID)
			if err != nil {
				return err
			}
			l, err := tx.Loan(ctx, pair.ID)
			if err != nil {
				return err
			}
			if a == nil || l == nil || l.Paid || now.Before(l.DueAt) {
				return nil
			}
			elapsed := int64(now.Sub(l.DueAt) / penaltyCycle)
			if elapsed <= l.PenaltyCyclesCharged {
				return nil
			}
			amount := int64(float64(l.Principal) * l.Rate * 2)
			if amount > a.Bank {
				return nil
			}
			if err := debitBank(a, amount); err != nil {
				return err
			}
			if err := addTreasury(ctx, tx, amount); err != nil {
				return err
			}
			l.PenaltyCyclesCharged = elapsed
			if err := tx.SaveLoan(ctx, l); err != nil {
				return err
			}
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
			fine = amount
			return nil
		})
		if err != nil {
			log.Printf("[ERROR] sweep: loans: loan %d: %v", pair.ID, err)
			continue
		}
		if fine > 0 {
			e.notifier.Notify(pair.AccountID,
				fmt.Sprintf("🏦 Your loan is overdue. A penalty of %d$ was taken from your bank account.", fine))
		}
	}
	return nil
}

// sweepArrests releases accounts whose jail time has passed.
func (e *Engine) sweepArrests(ctx context.Context, now time.Time) error {
	expired, err := e.store.ExpiredArrestIDs(ctx, now)
	if err != nil {
		return err
	}
	for _, id := range expired {
		var released bool
		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			released = false
			a, err := tx.Account(ctx, id)
			if err != nil {
				return err
			}
			if a == nil || a.ArrestUntil == nil || a.ArrestUntil.After(now) {
				return nil
			}
			a.ArrestUntil = nil
			released = true
			return tx.SaveAccount(ctx, a)
		})
		if err != nil {
			log.Printf("[ERROR] sweep: arrests: account %d: %v", id, err)
			continue
		}
		if released {
			e.notifier.Notify(id, "🔓 You served your time and are free again.")
		}
	}
	return nil
}

// sweepElection advances the election phase machine, at most one step per
// sweep tick.
func (e *Engine) sweepElection(ctx context.Context, now time.Time) error {
	var notices []notice
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		elec, err := tx.Election(ctx)
		if err != nil {
			return err
		}
		notices, err = e.advanceElection(ctx, tx, elec, now)
		return err
	})
	if err != nil {
		return err
	}
	for _, n := range notices {
		e.notifier.Notify(n.accountID, n.text)
	}
	return nil
}
