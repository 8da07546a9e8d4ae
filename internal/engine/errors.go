package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// Expected, recoverable, user-facing outcomes. The presentation adapter maps
// these to replies; none of them leaves partial state behind.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTooManyActiveLoans = errors.New("too many active loans")
	ErrAmountOutOfRange   = errors.New("amount out of range")
	ErrMaxLevelReached    = errors.New("max upgrade level reached")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrInvalidPhase       = errors.New("invalid election phase")
)

// ErrStorageUnavailable marks persistence failures: the action was not
// applied and is safe to retry.
var ErrStorageUnavailable = store.ErrUnavailable

// CooldownError reports that an action was attempted before its cooldown
// elapsed. Remaining is surfaced for user feedback.
type CooldownError struct {
	Kind      model.ActionKind
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active for %s: %s remaining", e.Kind, e.Remaining.Round(time.Second))
}

// ArrestedError reports that the account is jailed until the arrest window
// passes.
type ArrestedError struct {
	Remaining time.Duration
}

func (e *ArrestedError) Error() string {
	return fmt.Sprintf("arrested: %s remaining", e.Remaining.Round(time.Second))
}
