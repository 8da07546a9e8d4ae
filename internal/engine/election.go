package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// Election flows lock the singleton election row first. That one lock
// serializes candidate and vote writes on both dialects.

// StartElection opens a candidacy window right away, skipping the interval
// gate the sweep honors. Admin or owner only.
func (e *Engine) StartElection(ctx context.Context, callerID int64, now time.Time) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		elec, err := tx.Election(ctx)
		if err != nil {
			return err
		}
		caller, err := requireAccount(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin && !caller.IsOwner {
			return ErrPermissionDenied
		}
		if elec.Phase != model.PhaseIdle {
			return ErrInvalidPhase
		}
		elec.Cycle++
		elec.Phase = model.PhaseCandidacy
		ends := now.Add(e.election.CandidacyWindow())
		elec.PhaseEndsAt = &ends
		return tx.SaveElection(ctx, elec)
	})
}

// RegisterCandidate enters the account into the open candidacy window.
func (e *Engine) RegisterCandidate(ctx context.Context, id int64) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		elec, err := tx.Election(ctx)
		if err != nil {
			return err
		}
		if elec.Phase != model.PhaseCandidacy {
			return ErrInvalidPhase
		}
		if _, err := requireAccount(ctx, tx, id); err != nil {
			return err
		}
		existing, err := tx.Candidate(ctx, elec.Cycle, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyRegistered
		}
		return tx.InsertCandidate(ctx, &model.Candidate{Cycle: elec.Cycle, AccountID: id})
	})
}

// CastVote records one ballot for a registered candidate. Each account votes
// at most once per election cycle.
func (e *Engine) CastVote(ctx context.Context, voterID, candidateID int64, now time.Time) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		elec, err := tx.Election(ctx)
		if err != nil {
			return err
		}
		if elec.Phase != model.PhaseVoting {
			return ErrInvalidPhase
		}
		if _, err := requireAccount(ctx, tx, voterID); err != nil {
			return err
		}
		voted, err := tx.VoteExists(ctx, elec.Cycle, voterID)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}
		cand, err := tx.Candidate(ctx, elec.Cycle, candidateID)
		if err != nil {
			return err
		}
		if cand == nil {
			return ErrNotFound
		}
		if err := tx.InsertVote(ctx, elec.Cycle, voterID, candidateID, now); err != nil {
			return err
		}
		return tx.AddVote(ctx, elec.Cycle, candidateID)
	})
}

// Standings lists the current cycle's candidates, leader first.
func (e *Engine) Standings(ctx context.Context) (*model.ElectionState, []*model.Candidate, error) {
	var elec *model.ElectionState
	var cands []*model.Candidate
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		elec, err = tx.Election(ctx)
		if err != nil {
			return err
		}
		cands, err = tx.Candidates(ctx, elec.Cycle)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return elec, cands, nil
}

// SetTaxRate sets the production tax as a whole percentage. President or
// admin only; the rate is capped.
func (e *Engine) SetTaxRate(ctx context.Context, callerID int64, percent int) error {
	if percent < 0 || float64(percent) > e.eco.TaxMax*100 {
		return ErrAmountOutOfRange
	}
	return e.setRate(ctx, callerID, func(elec *model.ElectionState) {
		elec.TaxRate = float64(percent) / 100
	})
}

// SetLoanRate sets the per-cycle loan interest as a whole percentage.
// President or admin only. Loans already issued keep their frozen rate.
func (e *Engine) SetLoanRate(ctx context.Context, callerID int64, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrAmountOutOfRange
	}
	return e.setRate(ctx, callerID, func(elec *model.ElectionState) {
		elec.LoanRate = float64(percent) / 100
	})
}

func (e *Engine) setRate(ctx context.Context, callerID int64, apply func(*model.ElectionState)) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		elec, err := tx.Election(ctx)
		if err != nil {
			return err
		}
		caller, err := requireAccount(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if !caller.IsPresident && !caller.IsAdmin && !caller.IsOwner {
			return ErrPermissionDenied
		}
		apply(elec)
		return tx.SaveElection(ctx, elec)
	})
}

// notice is a notification queued inside a transaction and delivered only
// after it commits.
type notice struct {
	accountID int64
	text      string
}

// advanceElection walks the phase machine one step for the given instant.
// Runs under the caller's transaction with the election row already locked;
// returned notices go out after commit.
func (e *Engine) advanceElection(ctx context.Context, tx *store.Tx, elec *model.ElectionState, now time.Time) ([]notice, error) {
	switch elec.Phase {
	case model.PhaseIdle:
		if now.Sub(elec.LastElectionAt) < e.election.Interval() {
			return nil, nil
		}
		elec.Cycle++
		elec.Phase = model.PhaseCandidacy
		ends := now.Add(e.election.CandidacyWindow())
		elec.PhaseEndsAt = &ends
		return nil, tx.SaveElection(ctx, elec)

	case model.PhaseCandidacy:
		if elec.PhaseEndsAt == nil || now.Before(*elec.PhaseEndsAt) {
			return nil, nil
		}
		cands, err := tx.Candidates(ctx, elec.Cycle)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			// Nobody ran. Close out and wait a full interval before retrying.
			elec.Phase = model.PhaseIdle
			elec.PhaseEndsAt = nil
			elec.LastElectionAt = now
			return nil, tx.SaveElection(ctx, elec)
		}
		elec.Phase = model.PhaseVoting
		ends := now.Add(e.election.VotingWindow())
		elec.PhaseEndsAt = &ends
		return nil, tx.SaveElection(ctx, elec)

	case model.PhaseVoting:
		if elec.PhaseEndsAt == nil || now.Before(*elec.PhaseEndsAt) {
			return nil, nil
		}
		cands, err := tx.Candidates(ctx, elec.Cycle)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			elec.Phase = model.PhaseIdle
			elec.PhaseEndsAt = nil
			elec.LastElectionAt = now
			return nil, tx.SaveElection(ctx, elec)
		}
		// Candidates come back ordered by votes desc, account id asc, so the
		// first row is the winner under the tie-break rule.
		winner := cands[0]
		if err := tx.ClearPresident(ctx); err != nil {
			return nil, err
		}
		a, err := tx.Account(ctx, winner.AccountID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			a.IsPresident = true
			if err := tx.SaveAccount(ctx, a); err != nil {
				return nil, err
			}
		}
		elec.Phase = model.PhaseIdle
		elec.PhaseEndsAt = nil
		elec.LastElectionAt = now
		elec.PresidentID = &winner.AccountID
		if err := tx.SaveElection(ctx, elec); err != nil {
			return nil, err
		}
		return []notice{{winner.AccountID,
			fmt.Sprintf("🦅 You won the election with %d votes. You are now the president.", winner.Votes)}}, nil
	}
	return nil, nil
}
