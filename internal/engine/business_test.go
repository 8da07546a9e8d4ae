package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/model"
)

func TestBuyBusiness(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 40000, 0)

	b, err := e.BuyBusiness(context.Background(), 1, 101)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if b.Count != 1 || b.Level != 1 || b.State != model.ProductionIdle {
		t.Errorf("new business count=%d level=%d state=%s", b.Count, b.Level, b.State)
	}
	if got := getAccount(t, e, 1).Cash; got != 25000 {
		t.Errorf("cash = %d, want 25000", got)
	}

	// Same type again stacks the count.
	b, err = e.BuyBusiness(context.Background(), 1, 101)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if b.Count != 2 {
		t.Errorf("count = %d, want 2", b.Count)
	}

	// Unknown type.
	if _, err := e.BuyBusiness(context.Background(), 1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDepositResourceStartsProduction(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)

	// 5 units is below the 10 the sawmill needs: stays idle.
	res, err := e.DepositResource(context.Background(), 1, biz.ID, 5, now)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if res.Started || res.State != model.ProductionIdle || res.Stock != 5 {
		t.Errorf("after 5 units: started=%v state=%s stock=%d", res.Started, res.State, res.Stock)
	}

	// 7 more crosses the threshold: consumes 10, banks the excess 2.
	res, err = e.DepositResource(context.Background(), 1, biz.ID, 7, now)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if !res.Started || res.State != model.ProductionProducing || res.Stock != 2 {
		t.Errorf("after 12 units: started=%v state=%s stock=%d", res.Started, res.State, res.Stock)
	}
}

func TestDepositResourceValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	mustAccount(t, e, 2, now)
	setCash(t, e, 1, 100000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)

	if _, err := e.DepositResource(context.Background(), 1, biz.ID, 0, now); !errors.Is(err, ErrAmountOutOfRange) {
		t.Errorf("zero units: err = %v, want ErrAmountOutOfRange", err)
	}
	// Someone else's business is invisible.
	if _, err := e.DepositResource(context.Background(), 2, biz.ID, 5, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign business: err = %v, want ErrNotFound", err)
	}
}

func TestDepositResourceCostOverflowRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)

	// units*price wraps int64 negative; a wrapped cost must never reach the
	// ledger, where a negative debit would credit the account instead.
	if _, err := e.DepositResource(context.Background(), 1, biz.ID, 1<<55, now); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("overflowing units: err = %v, want ErrAmountOutOfRange", err)
	}
	if got := getAccount(t, e, 1).Cash; got != 85000 {
		t.Errorf("cash = %d, want 85000 untouched", got)
	}
	if got := mustOnlyBusiness(t, e, 1).Stock; got != 0 {
		t.Errorf("stock = %d, want 0 untouched", got)
	}
}

func TestProductionCycleLifecycle(t *testing.T) {
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

	// Sweep before the cycle elapses: nothing flips.
	e.Sweep(context.Background(), now.Add(time.Hour))
	if got := mustOnlyBusiness(t, e, 1).State; got != model.ProductionProducing {
		t.Fatalf("state after early sweep = %s, want PRODUCING", got)
	}

	// Collecting early pays nothing.
	res, err := e.CollectProduction(context.Background(), 1, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("early collect: %v", err)
	}
	if res.Collected != 0 {
		t.Fatalf("early collect hit %d businesses", res.Collected)
	}

	// Sweep after two hours: READY plus an owner notification.
	e.Sweep(context.Background(), now.Add(2*time.Hour+time.Minute))
	if got := mustOnlyBusiness(t, e, 1).State; got != model.ProductionReady {
		t.Fatalf("state after sweep = %s, want READY", got)
	}
	if n.count(1) == 0 {
		t.Errorf("owner not notified of finished cycle")
	}

	cashBefore := getAccount(t, e, 1).Cash
	res, err = e.CollectProduction(context.Background(), 1, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// Sawmill level 1: 1000 gross, 10% tax.
	if res.Gross != 1000 || res.Tax != 100 || res.Net != 900 {
		t.Errorf("collect gross=%d tax=%d net=%d, want 1000/100/900", res.Gross, res.Tax, res.Net)
	}
	if got := getAccount(t, e, 1).Cash; got != cashBefore+900 {
		t.Errorf("cash = %d, want %d", got, cashBefore+900)
	}
	// No stock left: back to idle.
	if got := mustOnlyBusiness(t, e, 1).State; got != model.ProductionIdle {
		t.Errorf("state after collect = %s, want IDLE", got)
	}
}

func TestCollectRestartsWithBankedStock(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 100000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)
	// Two cycles worth of lumber.
	if _, err := e.DepositResource(context.Background(), 1, biz.ID, 20, now); err != nil {
		t.Fatalf("stock: %v", err)
	}

	e.Sweep(context.Background(), now.Add(2*time.Hour+time.Minute))
	res, err := e.CollectProduction(context.Background(), 1, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Restarted != 1 {
		t.Errorf("restarted = %d, want 1", res.Restarted)
	}
	after := mustOnlyBusiness(t, e, 1)
	if after.State != model.ProductionProducing || after.Stock != 0 {
		t.Errorf("state=%s stock=%d after restart, want PRODUCING/0", after.State, after.Stock)
	}
}

func TestCollectProductionTaxMath(t *testing.T) {
	cat := &catalog.Catalog{
		Items: map[int]catalog.MarketItem{
			1: {ID: 1, Name: "Lumber", BasePrice: 500, Volatility: 0.15},
		},
		Businesses: map[int]catalog.BusinessType{
			101: {
				ID: 101, Name: "Sawmill", Cost: 15000,
				ResourceID: 1, UnitsPerCycle: 10,
				BasePayout: 150000, MaxLevel: 10,
				UpgradeCostMult: 1.5, PayoutMult: 1.5,
			},
		},
	}
	e, _ := newTestEngineWithCatalog(t, cat)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 10000000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)
	if _, err := e.UpgradeBusiness(context.Background(), 1, biz.ID); err != nil {
		t.Fatalf("upgrade to 2: %v", err)
	}
	if _, err := e.UpgradeBusiness(context.Background(), 1, biz.ID); err != nil {
		t.Fatalf("upgrade to 3: %v", err)
	}
	if _, err := e.DepositResource(context.Background(), 1, biz.ID, 10, now); err != nil {
		t.Fatalf("stock: %v", err)
	}
	e.Sweep(context.Background(), now.Add(2*time.Hour+time.Minute))

	res, err := e.CollectProduction(context.Background(), 1, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// 150000 * 1.5^2 = 337500 gross at level 3, 10% tax truncated.
	if res.Gross != 337500 {
		t.Errorf("gross = %d, want 337500", res.Gross)
	}
	if res.Tax != 33750 {
		t.Errorf("tax = %d, want 33750", res.Tax)
	}
	if res.Net != 303750 {
		t.Errorf("net = %d, want 303750", res.Net)
	}
}

func TestUpgradeBusiness(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	mustAccount(t, e, 1, now)
	setCash(t, e, 1, 10000000, 0)

	if _, err := e.BuyBusiness(context.Background(), 1, 101); err != nil {
		t.Fatalf("buy: %v", err)
	}
	biz := mustOnlyBusiness(t, e, 1)

	res, err := e.UpgradeBusiness(context.Background(), 1, biz.ID)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	// 15000 * 1.5^1 truncated.
	if res.Cost != 22500 {
		t.Errorf("cost = %d, want 22500", res.Cost)
	}
	if res.Level != 2 {
		t.Errorf("level = %d, want 2", res.Level)
	}

	// Burn through to the cap.
	for lvl := 2; lvl < 10; lvl++ {
		if _, err := e.UpgradeBusiness(context.Background(), 1, biz.ID); err != nil {
			t.Fatalf("upgrade from %d: %v", lvl, err)
		}
	}
	if _, err := e.UpgradeBusiness(context.Background(), 1, biz.ID); !errors.Is(err, ErrMaxLevelReached) {
		t.Fatalf("err = %v, want ErrMaxLevelReached", err)
	}
}
