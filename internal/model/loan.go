package model

import "time"

// Loan is a bank loan. Rate is captured at issuance and never tracks later
// rate changes. PenaltyCyclesCharged counts overdue penalty cycles already
// settled, so the sweep never double-charges.
type Loan struct {
	ID                   int64
	AccountID            int64
	Principal            int64
	Rate                 float64
	IssuedAt             time.Time
	DueAt                time.Time
	Paid                 bool
	PenaltyCyclesCharged int64
}

// InterestCycles returns the number of elapsed interest cycles, never less
// than one: a loan repaid the same hour it was issued still owes one cycle.
func (l *Loan) InterestCycles(now time.Time, cycle time.Duration) int64 {
	n := int64(now.Sub(l.IssuedAt) / cycle)
	if n < 1 {
		return 1
	}
	return n
}

// TotalDue is principal plus accrued interest at the given time.
func (l *Loan) TotalDue(now time.Time, cycle time.Duration) int64 {
	cycles := l.InterestCycles(now, cycle)
	interest := int64(float64(l.Principal) * l.Rate * float64(cycles))
	return l.Principal + interest
}
