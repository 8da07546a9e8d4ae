package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// The four functions below are the only balance mutation primitives. A debit
// validates against the loaded (locked) row, so two concurrent callers can
// never both pass validation on stale data. A negative amount is never a
// valid debit: it would act as a credit and bypass the balance check.

func creditCash(a *model.Account, amount int64) {
	a.Cash += amount
}

func debitCash(a *model.Account, amount int64) error {
	if amount < 0 {
		return ErrAmountOutOfRange
	}
	if amount > a.Cash {
		return ErrInsufficientFunds
	}
	a.Cash -= amount
	return nil
}

func creditBank(a *model.Account, amount int64) {
	a.Bank += amount
}

func debitBank(a *model.Account, amount int64) error {
	if amount < 0 {
		return ErrAmountOutOfRange
	}
	if amount > a.Bank {
		return ErrInsufficientFunds
	}
	a.Bank -= amount
	return nil
}

// Deposit moves cash into the bank balance.
func (e *Engine) Deposit(ctx context.Context, id, amount int64) error {
	if amount <= 0 {
		return ErrAmountOutOfRange
	}
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := debitCash(a, amount); err != nil {
			return err
		}
		creditBank(a, amount)
		return tx.SaveAccount(ctx, a)
	})
}

// Withdraw moves bank balance back to cash.
func (e *Engine) Withdraw(ctx context.Context, id, amount int64) error {
	if amount <= 0 {
		return ErrAmountOutOfRange
	}
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := debitBank(a, amount); err != nil {
			return err
		}
		creditCash(a, amount)
		return tx.SaveAccount(ctx, a)
	})
}

// Transfer moves cash between two accounts as one atomic pair: if the debit
// fails nothing changes. Rows lock in ascending id order.
func (e *Engine) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	if amount <= 0 {
		return ErrAmountOutOfRange
	}
	if fromID == toID {
		return ErrAmountOutOfRange
	}
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		accounts := map[int64]*model.Account{}
		for _, id := range []int64{first, second} {
			a, err := requireAccount(ctx, tx, id)
			if err != nil {
				return err
			}
			accounts[id] = a
		}
		from, to := accounts[fromID], accounts[toID]
		if err := debitCash(from, amount); err != nil {
			return err
		}
		creditCash(to, amount)
		if err := tx.SaveAccount(ctx, from); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, to)
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(toID, fmt.Sprintf("💸 You received a transfer of %d$.", amount))
	return nil
}

// AdminGrant mints cash onto the target account. Admin or owner only.
func (e *Engine) AdminGrant(ctx context.Context, callerID, targetID, amount int64) error {
	if amount <= 0 {
		return ErrAmountOutOfRange
	}
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		caller, err := tx.Account(ctx, callerID)
		if err != nil {
			return err
		}
		if caller == nil {
			return ErrNotFound
		}
		if !caller.IsAdmin && !caller.IsOwner {
			return ErrPermissionDenied
		}
		target, err := tx.Account(ctx, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotFound
		}
		creditCash(target, amount)
		return tx.SaveAccount(ctx, target)
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(targetID, fmt.Sprintf("🎁 An administrator granted you %d$.", amount))
	return nil
}

// AdminSetBanned toggles the ban flag. Admin or owner only.
func (e *Engine) AdminSetBanned(ctx context.Context, callerID, targetID int64, banned bool) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		caller, err := tx.Account(ctx, callerID)
		if err != nil {
			return err
		}
		if caller == nil {
			return ErrNotFound
		}
		if !caller.IsAdmin && !caller.IsOwner {
			return ErrPermissionDenied
		}
		target, err := tx.Account(ctx, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotFound
		}
		target.Banned = banned
		return tx.SaveAccount(ctx, target)
	})
}

// SpendTreasury pays a target account out of the treasury. President only.
func (e *Engine) SpendTreasury(ctx context.Context, presidentID, targetID, amount int64) error {
	if amount <= 0 {
		return ErrAmountOutOfRange
	}
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		// Account rows lock in ascending id order, treasury last; the same
		// order every mutating flow uses.
		accounts := map[int64]*model.Account{}
		first, second := presidentID, targetID
		if second < first {
			first, second = second, first
		}
		for _, id := range []int64{first, second} {
			if _, ok := accounts[id]; ok {
				continue
			}
			a, err := tx.Account(ctx, id)
			if err != nil {
				return err
			}
			if a == nil {
				return ErrNotFound
			}
			accounts[id] = a
		}
		pres, target := accounts[presidentID], accounts[targetID]
		if !pres.IsPresident {
			return ErrPermissionDenied
		}
		balance, err := tx.Treasury(ctx)
		if err != nil {
			return err
		}
		if amount > balance {
			return ErrInsufficientFunds
		}
		if err := tx.SetTreasury(ctx, balance-amount); err != nil {
			return err
		}
		creditCash(target, amount)
		return tx.SaveAccount(ctx, target)
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(targetID, fmt.Sprintf("🦅 The president paid you %d$ from the treasury.", amount))
	return nil
}

// BetResult reports a casino round.
type BetResult struct {
	Multiplier float64
	Delta      int64 // net balance change, negative on loss
	Cash       int64 // cash after the round
}

// casinoMultipliers weights a full or half loss 6/9.
var casinoMultipliers = []float64{0, 0, 0, 0, 0, 0.5, 1.5, 2.0, 3.0}

// PlaceBet plays one casino round.
func (e *Engine) PlaceBet(ctx context.Context, id, bet int64, now time.Time) (*BetResult, error) {
	if bet < e.eco.CasinoMinBet {
		return nil, ErrAmountOutOfRange
	}
	var res BetResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if bet > a.Cash {
			return ErrInsufficientFunds
		}
		mult := casinoMultipliers[int(e.roll()*float64(len(casinoMultipliers)))]
		switch {
		case mult == 0:
			res.Delta = -bet
		case mult == 0.5:
			res.Delta = -(bet / 2)
		default:
			res.Delta = int64(float64(bet) * mult)
		}
		if res.Delta < 0 {
			if err := debitCash(a, -res.Delta); err != nil {
				return err
			}
		} else {
			creditCash(a, res.Delta)
		}
		res.Multiplier = mult
		res.Cash = a.Cash
		return tx.SaveAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
