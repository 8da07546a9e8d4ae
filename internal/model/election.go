package model

import "time"

// ElectionPhase is the current phase of the election state machine.
type ElectionPhase string

const (
	PhaseIdle      ElectionPhase = "IDLE"
	PhaseCandidacy ElectionPhase = "CANDIDACY"
	PhaseVoting    ElectionPhase = "VOTING"
)

// ElectionState is the singleton election/economy row. Cycle increments each
// time a Candidacy phase opens; candidate and vote uniqueness key off it.
type ElectionState struct {
	Cycle          int64
	Phase          ElectionPhase
	TaxRate        float64
	LoanRate       float64
	PhaseEndsAt    *time.Time
	LastElectionAt time.Time
	PresidentID    *int64
}

// Candidate is one account running in a given election cycle.
type Candidate struct {
	Cycle     int64
	AccountID int64
	Votes     int
}

// MarketPrice is the current exchange price of one resource item.
type MarketPrice struct {
	ItemID int
	Price  int64
}
