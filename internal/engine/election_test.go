package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

func electionState(t *testing.T, e *Engine) *model.ElectionState {
	t.Helper()
	elec, err := e.store.CurrentElection(context.Background())
	if err != nil {
		t.Fatalf("election state: %v", err)
	}
	return elec
}

func makeAdmin(t *testing.T, e *Engine, id int64) {
	t.Helper()
	err := e.store.WithTx(context.Background(), func(tx *store.Tx) error {
		a, err := tx.Account(context.Background(), id)
		if err != nil {
			return err
		}
		a.IsAdmin = true
		return tx.SaveAccount(context.Background(), a)
	})
	if err != nil {
		t.Fatalf("make admin: %v", err)
	}
}

func TestStartElection(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now().Truncate(time.Second)
	mustAccount(t, e, 1, now)
	mustAccount(t, e, 2, now)

	// Civilians cannot force an election.
	if err := e.StartElection(context.Background(), 2, now); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	makeAdmin(t, e, 1)
	if err := e.StartElection(context.Background(), 1, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	elec := electionState(t, e)
	if elec.Phase != model.PhaseCandidacy || elec.Cycle != 1 {
		t.Fatalf("phase=%s cycle=%d, want CANDIDACY/1", elec.Phase, elec.Cycle)
	}
	if elec.PhaseEndsAt == nil || !elec.PhaseEndsAt.Equal(now.Add(24*time.Hour)) {
		t.Errorf("phase ends = %v, want %v", elec.PhaseEndsAt, now.Add(24*time.Hour))
	}

	// Already running.
	if err := e.StartElection(context.Background(), 1, now); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("err = %v, want ErrInvalidPhase", err)
	}
}

func TestElectionFullCycle(t *testing.T) {
	e, n := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	mustAccount(t, e, 2, now)
	mustAccount(t, e, 3, now)

	// The seeded state has never held an election, so the first sweep opens
	// candidacy.
	e.Sweep(context.Background(), now)
	elec := electionState(t, e)
	if elec.Phase != model.PhaseCandidacy || elec.Cycle != 1 {
		t.Fatalf("phase=%s cycle=%d, want CANDIDACY/1", elec.Phase, elec.Cycle)
	}

	if err := e.RegisterCandidate(context.Background(), 1); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := e.RegisterCandidate(context.Background(), 2); err != nil {
		t.Fatalf("register 2: %v", err)
	}
	if err := e.RegisterCandidate(context.Background(), 1); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("double register: err = %v, want ErrAlreadyRegistered", err)
	}
	// Voting hasn't opened yet.
	if err := e.CastVote(context.Background(), 3, 1, now); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("early vote: err = %v, want ErrInvalidPhase", err)
	}

	// Candidacy window closes, voting opens.
	e.Sweep(context.Background(), now.Add(25*time.Hour))
	if got := electionState(t, e).Phase; got != model.PhaseVoting {
		t.Fatalf("phase = %s, want VOTING", got)
	}
	if err := e.RegisterCandidate(context.Background(), 3); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("late register: err = %v, want ErrInvalidPhase", err)
	}

	voteAt := now.Add(26 * time.Hour)
	if err := e.CastVote(context.Background(), 3, 2, voteAt); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := e.CastVote(context.Background(), 3, 1, voteAt); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("double vote: err = %v, want ErrAlreadyVoted", err)
	}
	if err := e.CastVote(context.Background(), 2, 3, voteAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("vote for non-candidate: err = %v, want ErrNotFound", err)
	}

	// Voting closes: candidate 2 wins 1-0.
	closeAt := now.Add(50 * time.Hour)
	e.Sweep(context.Background(), closeAt)
	elec = electionState(t, e)
	if elec.Phase != model.PhaseIdle {
		t.Fatalf("phase = %s, want IDLE", elec.Phase)
	}
	if elec.PresidentID == nil || *elec.PresidentID != 2 {
		t.Fatalf("president = %v, want 2", elec.PresidentID)
	}
	if !getAccount(t, e, 2).IsPresident {
		t.Errorf("winner's account flag not set")
	}
	if n.count(2) == 0 {
		t.Errorf("winner not notified")
	}
}

func TestElectionTieBreakLowestID(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 7, now)
	mustAccount(t, e, 3, now)

	e.Sweep(context.Background(), now)
	if err := e.RegisterCandidate(context.Background(), 7); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.RegisterCandidate(context.Background(), 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	e.Sweep(context.Background(), now.Add(25*time.Hour))
	e.Sweep(context.Background(), now.Add(50*time.Hour))

	elec := electionState(t, e)
	if elec.PresidentID == nil || *elec.PresidentID != 3 {
		t.Fatalf("president = %v, want 3 (tie broken by lowest id)", elec.PresidentID)
	}
}

func TestElectionNoCandidates(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()

	e.Sweep(context.Background(), now)
	if got := electionState(t, e).Phase; got != model.PhaseCandidacy {
		t.Fatalf("phase = %s, want CANDIDACY", got)
	}

	// Nobody ran: straight back to idle, no president.
	e.Sweep(context.Background(), now.Add(25*time.Hour))
	elec := electionState(t, e)
	if elec.Phase != model.PhaseIdle {
		t.Fatalf("phase = %s, want IDLE", elec.Phase)
	}
	if elec.PresidentID != nil {
		t.Fatalf("president = %v, want none", *elec.PresidentID)
	}

	// And the interval gate holds: a sweep the next day stays idle.
	e.Sweep(context.Background(), now.Add(49*time.Hour))
	if got := electionState(t, e).Phase; got != model.PhaseIdle {
		t.Errorf("phase = %s, want IDLE before interval elapses", got)
	}
}

func TestNewPresidentReplacesOld(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	mustAccount(t, e, 2, now)

	// First term: account 1 unopposed.
	e.Sweep(context.Background(), now)
	if err := e.RegisterCandidate(context.Background(), 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	e.Sweep(context.Background(), now.Add(25*time.Hour))
	e.Sweep(context.Background(), now.Add(50*time.Hour))
	if !getAccount(t, e, 1).IsPresident {
		t.Fatal("first winner not in office")
	}

	// Second term, a full interval later: account 2 unopposed.
	term2 := now.Add(50*time.Hour + 14*24*time.Hour)
	e.Sweep(context.Background(), term2)
	if err := e.RegisterCandidate(context.Background(), 2); err != nil {
		t.Fatalf("register: %v", err)
	}
	e.Sweep(context.Background(), term2.Add(25*time.Hour))
	e.Sweep(context.Background(), term2.Add(50*time.Hour))

	if getAccount(t, e, 1).IsPresident {
		t.Errorf("old president still flagged")
	}
	if !getAccount(t, e, 2).IsPresident {
		t.Errorf("new president not flagged")
	}
}

func TestSetRates(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	mustAccount(t, e, 2, now)

	if err := e.SetTaxRate(context.Background(), 1, 30); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("civilian set tax: err = %v, want ErrPermissionDenied", err)
	}

	makePresident(t, e, 1)
	if err := e.SetTaxRate(context.Background(), 1, 30); err != nil {
		t.Fatalf("set tax: %v", err)
	}
	if got := electionState(t, e).TaxRate; got != 0.30 {
		t.Errorf("tax rate = %v, want 0.30", got)
	}

	// Above the 50% cap.
	if err := e.SetTaxRate(context.Background(), 1, 51); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("over cap: err = %v, want ErrAmountOutOfRange", err)
	}

	if err := e.SetLoanRate(context.Background(), 1, 5); err != nil {
		t.Fatalf("set loan rate: %v", err)
	}
	if got := electionState(t, e).LoanRate; got != 0.05 {
		t.Errorf("loan rate = %v, want 0.05", got)
	}

	// New loans pick up the new rate, old loans keep theirs.
	l1, err := e.Borrow(context.Background(), 2, 10000, 7, now)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if l1.Rate != 0.05 {
		t.Errorf("new loan rate = %v, want 0.05", l1.Rate)
	}
}
