package engine

import (
	"context"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// Loan terms are chosen by the borrower within this window.
const (
	loanMinTermDays = 7
	loanMaxTermDays = 30
)

// Borrow issues a loan against the account's net worth. The principal lands
// on the bank balance and the interest rate is frozen at the current value
// for the life of the loan.
func (e *Engine) Borrow(ctx context.Context, id, principal int64, termDays int, now time.Time) (*model.Loan, error) {
	if principal < e.eco.LoanMin {
		return nil, ErrAmountOutOfRange
	}
	if termDays < loanMinTermDays || termDays > loanMaxTermDays {
		return nil, ErrAmountOutOfRange
	}
	var out *model.Loan
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if principal > a.NetWorth()*e.eco.LoanCapMult {
			return ErrAmountOutOfRange
		}
		active, err := tx.CountActiveLoans(ctx, id)
		if err != nil {
			return err
		}
		if active >= e.eco.LoanMaxActive {
			return ErrTooManyActiveLoans
		}
		_, loanRate, err := tx.Rates(ctx)
		if err != nil {
			return err
		}
		l := &model.Loan{
			AccountID: id,
			Principal: principal,
			Rate:      loanRate,
			IssuedAt:  now,
			DueAt:     now.Add(time.Duration(termDays) * 24 * time.Hour),
		}
		if err := tx.InsertLoan(ctx, l); err != nil {
			return err
		}
		creditBank(a, principal)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RepayResult reports a loan settlement.
type RepayResult struct {
	Total    int64
	Interest int64
	Bank     int64
}

// Repay settles a loan in full from the bank balance. The accrued interest
// (or the configured share of it) flows into the treasury.
func (e *Engine) Repay(ctx context.Context, id, loanID int64, now time.Time) (*RepayResult, error) {
	var res RepayResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		l, err := tx.Loan(ctx, loanID)
		if err != nil {
			return err
		}
		if l == nil || l.Paid || l.AccountID != id {
			return ErrNotFound
		}
		total := l.TotalDue(now, e.eco.LoanCycle())
		if err := debitBank(a, total); err != nil {
			return err
		}
		l.Paid = true
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}
		interest := total - l.Principal
		if share := truncPct(interest, e.eco.LoanTreasuryShare); share > 0 {
			if err := addTreasury(ctx, tx, share); err != nil {
				return err
			}
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		res = RepayResult{Total: total, Interest: interest, Bank: a.Bank}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
