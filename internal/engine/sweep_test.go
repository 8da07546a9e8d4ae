package engine

import (
	"context"
	"testing"
	"time"

	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

func marketPrice(t *testing.T, e *Engine, itemID int) int64 {
	t.Helper()
	prices, err := e.store.Prices(context.Background())
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	for _, p := range prices {
		if p.ItemID == itemID {
			return p.Price
		}
	}
	t.Fatalf("no price for item %d", itemID)
	return 0
}

func TestMarketWalkStaysAboveFloor(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()

	// Pin lumber at its floor; no run of sweeps may push it below.
	err := e.store.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.SaveMarketPrice(context.Background(), &model.MarketPrice{ItemID: 1, Price: 250})
	})
	if err != nil {
		t.Fatalf("pin price: %v", err)
	}

	for i := 0; i < 100; i++ {
		e.Sweep(context.Background(), now.Add(time.Duration(i)*15*time.Minute))
		if p := marketPrice(t, e, 1); p < 250 {
			t.Fatalf("lumber price %d fell below floor 250 at sweep %d", p, i)
		}
	}
}

func TestMarketWalkBounded(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()

	before := marketPrice(t, e, 1)
	e.Sweep(context.Background(), now)
	after := marketPrice(t, e, 1)

	// One step moves at most ±15% for lumber.
	lo := int64(float64(before) * 0.85)
	hi := int64(float64(before) * 1.15)
	if after < lo || after > hi {
		t.Errorf("price moved %d -> %d, outside [%d, %d]", before, after, lo, hi)
	}
}

func TestSweepIsIdempotentForProduction(t *testing.T) {
	e, n := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)
	if _, err := e.DepositResource(context.Background(), 1, biz.ID, 10, now); err != nil {
		t.Fatalf("stock: %v", err)
	}

	at := now.Add(2*time.Hour + time.Minute)
	e.Sweep(context.Background(), at)
	notified := n.count(1)
	if notified == 0 {
		t.Fatal("owner not notified")
	}

	// Same instant again: state already READY, no second notification.
	e.Sweep(context.Background(), at)
	if got := mustOnlyBusiness(t, e, 1).State; got != model.ProductionReady {
		t.Errorf("state = %s, want READY", got)
	}
	if n.count(1) != notified {
		t.Errorf("repeat sweep re-notified: %d -> %d", notified, n.count(1))
	}
}

func TestSweepReleasesArrests(t *testing.T) {
	e, n := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)

	until := now.Add(time.Hour)
	err := e.store.WithTx(context.Background(), func(tx *store.Tx) error {
		a, err := tx.Account(context.Background(), 1)
		if err != nil {
			return err
		}
		a.ArrestUntil = &until
		return tx.SaveAccount(context.Background(), a)
	})
	if err != nil {
		t.Fatalf("jail: %v", err)
	}

	// Too early: still jailed.
	e.Sweep(context.Background(), now.Add(30*time.Minute))
	if getAccount(t, e, 1).ArrestUntil == nil {
		t.Fatal("released early")
	}

	e.Sweep(context.Background(), now.Add(61*time.Minute))
	if getAccount(t, e, 1).ArrestUntil != nil {
		t.Fatal("not released after window passed")
	}
	if n.count(1) == 0 {
		t.Errorf("release not notified")
	}

	// Releasing is terminal: nothing more to do on the next pass.
	count := n.count(1)
	e.Sweep(context.Background(), now.Add(62*time.Minute))
	if n.count(1) != count {
		t.Errorf("repeat sweep re-notified release")
	}
}
