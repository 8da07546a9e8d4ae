package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
)

func TestWorkRewardScalesWithJobLevel(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)

	res, err := e.PerformTimedAction(context.Background(), 1, model.ActionWork, now)
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if res.Reward != 1500 {
		t.Errorf("reward = %d, want 1500", res.Reward)
	}
	if got := getAccount(t, e, 1).Cash; got != 11500 {
		t.Errorf("cash = %d, want 11500", got)
	}
}

func TestCooldownBlocksRepeat(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)

	if _, err := e.PerformTimedAction(context.Background(), 1, model.ActionWork, now); err != nil {
		t.Fatalf("first work: %v", err)
	}

	_, err := e.PerformTimedAction(context.Background(), 1, model.ActionWork, now.Add(30*time.Minute))
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("err = %v, want CooldownError", err)
	}
	if cd.Remaining <= 0 || cd.Remaining > 30*time.Minute {
		t.Errorf("remaining = %s, want in (0, 30m]", cd.Remaining)
	}

	// After the hour it works again.
	if _, err := e.PerformTimedAction(context.Background(), 1, model.ActionWork, now.Add(61*time.Minute)); err != nil {
		t.Fatalf("work after cooldown: %v", err)
	}
}

func TestConcurrentTimedActionSingleSuccess(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.PerformTimedAction(context.Background(), 1, model.ActionDaily, now)
		}(i)
	}
	wg.Wait()

	var ok, blocked int
	for _, err := range errs {
		var cd *CooldownError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &cd):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successes = %d, want exactly 1", ok)
	}
	if blocked != workers-1 {
		t.Errorf("cooldown rejections = %d, want %d", blocked, workers-1)
	}
	if got := getAccount(t, e, 1).Cash; got != 20000 {
		t.Errorf("cash = %d, want 20000 (one daily bonus)", got)
	}
}

func TestUnknownActionKind(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)

	if _, err := e.PerformTimedAction(context.Background(), 1, model.ActionKind("vote"), now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCrimeOutcomes(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	// Run crimes across many cooldown windows until both outcomes appeared.
	var wins, losses int
	treasuryBefore := treasury(t, e)
	for i := 0; i < 40 && (wins == 0 || losses == 0); i++ {
		at := now.Add(time.Duration(i) * 7 * time.Hour)
		res, err := e.PerformTimedAction(context.Background(), 1, model.ActionCrime, at)
		var ar *ArrestedError
		if errors.As(err, &ar) {
			continue
		}
		if err != nil {
			t.Fatalf("crime %d: %v", i, err)
		}
		if res.Success {
			wins++
			if res.Reward <= 0 {
				t.Errorf("crime %d: success with reward %d", i, res.Reward)
			}
		} else {
			losses++
			if res.Fine <= 0 {
				t.Errorf("crime %d: failure with fine %d", i, res.Fine)
			}
			if res.ArrestUntil == nil || !res.ArrestUntil.Equal(at.Add(time.Hour)) {
				t.Errorf("crime %d: arrest_until = %v, want %v", i, res.ArrestUntil, at.Add(time.Hour))
			}
		}
	}
	if wins == 0 || losses == 0 {
		t.Fatalf("wins=%d losses=%d, want both outcomes within 40 rolls", wins, losses)
	}
	if treasury(t, e) <= treasuryBefore {
		t.Errorf("treasury did not grow from fines")
	}
}

func TestCrimeBlockedWhileArrested(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	// Force losses until an arrest lands.
	var arrestedAt time.Time
	for i := 0; i < 40; i++ {
		at := now.Add(time.Duration(i) * 7 * time.Hour)
		res, err := e.PerformTimedAction(context.Background(), 1, model.ActionCrime, at)
		if err != nil {
			continue
		}
		if !res.Success {
			arrestedAt = at
			break
		}
	}
	if arrestedAt.IsZero() {
		t.Fatal("no failed crime within 40 rolls")
	}

	_, err := e.PerformTimedAction(context.Background(), 1, model.ActionCrime, arrestedAt.Add(30*time.Minute))
	var ar *ArrestedError
	if !errors.As(err, &ar) {
		t.Fatalf("err = %v, want ArrestedError", err)
	}
	// Work is not blocked by jail.
	if _, err := e.PerformTimedAction(context.Background(), 1, model.ActionWork, arrestedAt.Add(30*time.Minute)); err != nil {
		t.Fatalf("work while jailed: %v", err)
	}
}
