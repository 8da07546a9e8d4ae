package model

import "time"

// Account is a player's persistent economic identity.
type Account struct {
	ID          int64
	Username    string
	Cash        int64
	Bank        int64
	JobLevel    int
	IsAdmin     bool
	IsOwner     bool
	IsPresident bool
	Banned      bool
	ArrestUntil *time.Time
	CreatedAt   time.Time
}

// Arrested reports whether the account is jailed at the given time.
func (a *Account) Arrested(now time.Time) bool {
	return a.ArrestUntil != nil && a.ArrestUntil.After(now)
}

// NetWorth is cash plus bank balance.
func (a *Account) NetWorth() int64 {
	return a.Cash + a.Bank
}

// ActionKind identifies a cooldown-gated user action.
type ActionKind string

const (
	ActionWork  ActionKind = "work"
	ActionDaily ActionKind = "daily"
	ActionCrime ActionKind = "crime"
)

// Cooldown records when an account last performed an action kind.
type Cooldown struct {
	AccountID   int64
	Kind        ActionKind
	PerformedAt time.Time
}
