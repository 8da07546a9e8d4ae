package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// ActionResult reports the outcome of a timed action.
type ActionResult struct {
	Kind        model.ActionKind
	Success     bool
	Reward      int64
	Fine        int64
	ArrestUntil *time.Time
	Cash        int64
}

// PerformTimedAction runs a cooldown-gated action (work, daily bonus, crime).
// The cooldown check and the marker update happen in the same transaction, so
// a concurrent double-invocation yields exactly one success and one
// CooldownError.
func (e *Engine) PerformTimedAction(ctx context.Context, id int64, kind model.ActionKind, now time.Time) (*ActionResult, error) {
	cooldown := e.eco.Cooldown(string(kind))
	if cooldown == 0 {
		return nil, fmt.Errorf("%w: unknown action kind %q", ErrNotFound, kind)
	}

	var res *ActionResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if kind == model.ActionCrime && a.Arrested(now) {
			return &ArrestedError{Remaining: a.ArrestUntil.Sub(now)}
		}

		last, err := tx.Cooldown(ctx, id, kind)
		if err != nil {
			return err
		}
		if last != nil {
			if eligible := last.Add(cooldown); now.Before(eligible) {
				return &CooldownError{Kind: kind, Remaining: eligible.Sub(now)}
			}
		}

		switch kind {
		case model.ActionWork:
			res = e.doWork(a)
		case model.ActionDaily:
			res = e.doDaily(a)
		case model.ActionCrime:
			res, err = e.doCrime(ctx, tx, a, now)
			if err != nil {
				return err
			}
		}

		// Marker updates only on success, in the same transaction as the
		// mutation (test-and-set).
		if err := tx.SetCooldown(ctx, id, kind, now); err != nil {
			return err
		}
		res.Cash = a.Cash
		return tx.SaveAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) doWork(a *model.Account) *ActionResult {
	reward := e.eco.WorkReward * int64(a.JobLevel)
	creditCash(a, reward)
	return &ActionResult{Kind: model.ActionWork, Success: true, Reward: reward}
}

func (e *Engine) doDaily(a *model.Account) *ActionResult {
	creditCash(a, e.eco.DailyBonus)
	return &ActionResult{Kind: model.ActionDaily, Success: true, Reward: e.eco.DailyBonus}
}

// doCrime rolls a heist. Success pays 2.5-4x the stake; failure fines 1.5x
// the stake (capped at cash on hand, routed to the treasury) and jails the
// account.
func (e *Engine) doCrime(ctx context.Context, tx *store.Tx, a *model.Account, now time.Time) (*ActionResult, error) {
	if a.Cash < e.eco.CasinoMinBet {
		return nil, ErrInsufficientFunds
	}
	stake := a.Cash / 10
	if stake < e.eco.CasinoMinBet {
		stake = e.eco.CasinoMinBet
	}

	chance := 0.35 + 0.02*float64(a.JobLevel)
	if e.roll() < chance {
		reward := int64(float64(stake) * e.uniform(2.5, 4.0))
		creditCash(a, reward)
		return &ActionResult{Kind: model.ActionCrime, Success: true, Reward: reward}, nil
	}

	fine := int64(float64(stake) * e.eco.CrimeFineMult)
	if fine > a.Cash {
		fine = a.Cash
	}
	if err := debitCash(a, fine); err != nil {
		return nil, err
	}
	if err := addTreasury(ctx, tx, fine); err != nil {
		return nil, err
	}
	until := now.Add(e.eco.JailTime())
	a.ArrestUntil = &until
	return &ActionResult{Kind: model.ActionCrime, Success: false, Fine: fine, ArrestUntil: &until}, nil
}
