package engine

import (
	"context"
	"math"
	"time"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/store"
)

// BuyBusiness purchases one unit of a business type. Repeat purchases of the
// same type increment the count on the existing holding.
func (e *Engine) BuyBusiness(ctx context.Context, id int64, typeID int) (*model.OwnedBusiness, error) {
	bt, ok := e.cat.Business(typeID)
	if !ok {
		return nil, ErrNotFound
	}
	var out *model.OwnedBusiness
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := debitCash(a, bt.Cost); err != nil {
			return err
		}
		b, err := tx.BusinessByType(ctx, id, typeID)
		if err != nil {
			return err
		}
		if b != nil {
			b.Count++
			if err := tx.SaveBusiness(ctx, b); err != nil {
				return err
			}
		} else {
			b = &model.OwnedBusiness{
				AccountID: id,
				TypeID:    typeID,
				Count:     1,
				Level:     1,
				State:     model.ProductionIdle,
			}
			if err := tx.InsertBusiness(ctx, b); err != nil {
				return err
			}
		}
		out = b
		return tx.SaveAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DepositResult reports a resource purchase.
type DepositResult struct {
	Units     int64
	UnitPrice int64
	Cost      int64
	Started   bool
	State     model.ProductionState
	Stock     int64
}

// DepositResource buys resource units at the current market price and banks
// them on the business. The price is always re-derived server-side; the
// adapter passes ids only. If the business is idle and the banked stock now
// covers a cycle, production starts immediately.
func (e *Engine) DepositResource(ctx context.Context, id, businessID, units int64, now time.Time) (*DepositResult, error) {
	if units <= 0 {
		return nil, ErrAmountOutOfRange
	}
	var res DepositResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		b, err := tx.Business(ctx, businessID)
		if err != nil {
			return err
		}
		if b == nil || b.AccountID != id {
			return ErrNotFound
		}
		bt, ok := e.cat.Business(b.TypeID)
		if !ok {
			return ErrNotFound
		}
		price, err := tx.MarketPrice(ctx, bt.ResourceID)
		if err != nil {
			return err
		}
		unitPrice := bt.Cost // unreachable fallback; catalog items are seeded
		if price != nil {
			unitPrice = price.Price
		}
		// A huge unit count can wrap the multiplication negative, which
		// would turn the debit into a credit.
		cost := units * unitPrice
		if unitPrice != 0 && (cost < 0 || cost/unitPrice != units) {
			return ErrAmountOutOfRange
		}
		if err := debitCash(a, cost); err != nil {
			return err
		}
		b.Stock += units
		started := maybeStartCycle(b, bt, now)
		if err := tx.SaveBusiness(ctx, b); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		res = DepositResult{
			Units: units, UnitPrice: unitPrice, Cost: cost,
			Started: started, State: b.State, Stock: b.Stock,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// maybeStartCycle moves an idle business into Producing when its banked stock
// covers one cycle, consuming exactly that much. Excess stock stays banked.
func maybeStartCycle(b *model.OwnedBusiness, bt catalog.BusinessType, now time.Time) bool {
	if b.State != model.ProductionIdle || b.Stock < bt.UnitsPerCycle {
		return false
	}
	b.Stock -= bt.UnitsPerCycle
	b.State = model.ProductionProducing
	started := now
	b.StartedAt = &started
	return true
}

// cyclePayout is the gross payout of one collected cycle for the holding.
func cyclePayout(b *model.OwnedBusiness, bt catalog.BusinessType) int64 {
	per := int64(float64(bt.BasePayout) * math.Pow(bt.PayoutMult, float64(b.Level-1)))
	return per * int64(b.Count)
}

// CollectResult reports a production collection batch.
type CollectResult struct {
	Collected int // businesses collected
	Gross     int64
	Tax       int64
	Net       int64
	Restarted int // businesses that immediately re-entered Producing
}

// CollectProduction collects every Ready business of the account as one
// batch. The payout is taxed at the current rate (tax to the treasury, net to
// cash) and each collected business immediately re-enters Producing if its
// remaining stock covers another cycle.
func (e *Engine) CollectProduction(ctx context.Context, id int64, now time.Time) (*CollectResult, error) {
	var res CollectResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		res = CollectResult{}
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		taxRate, _, err := tx.Rates(ctx)
		if err != nil {
			return err
		}
		bizs, err := tx.BusinessesOf(ctx, id)
		if err != nil {
			return err
		}
		for _, b := range bizs {
			if b.State != model.ProductionReady {
				continue
			}
			bt, ok := e.cat.Business(b.TypeID)
			if !ok {
				continue
			}
			res.Gross += cyclePayout(b, bt)
			res.Collected++
			b.State = model.ProductionIdle
			b.StartedAt = nil
			if maybeStartCycle(b, bt, now) {
				res.Restarted++
			}
			if err := tx.SaveBusiness(ctx, b); err != nil {
				return err
			}
		}
		if res.Collected == 0 {
			return nil
		}
		res.Tax = truncPct(res.Gross, taxRate)
		res.Net = res.Gross - res.Tax
		creditCash(a, res.Net)
		if err := addTreasury(ctx, tx, res.Tax); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpgradeResult reports a business upgrade.
type UpgradeResult struct {
	Level      int
	Cost       int64
	NextPayout int64
}

// UpgradeBusiness raises the upgrade level by exactly one. The cost is
// re-derived from the catalog and the stored level, never trusted from the
// caller.
func (e *Engine) UpgradeBusiness(ctx context.Context, id, businessID int64) (*UpgradeResult, error) {
	var res UpgradeResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		a, err := requireAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		b, err := tx.Business(ctx, businessID)
		if err != nil {
			return err
		}
		if b == nil || b.AccountID != id {
			return ErrNotFound
		}
		bt, ok := e.cat.Business(b.TypeID)
		if !ok {
			return ErrNotFound
		}
		if b.Level >= bt.MaxLevel {
			return ErrMaxLevelReached
		}
		cost := int64(float64(bt.Cost) * math.Pow(bt.UpgradeCostMult, float64(b.Level)))
		if err := debitCash(a, cost); err != nil {
			return err
		}
		b.Level++
		if err := tx.SaveBusiness(ctx, b); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		res = UpgradeResult{
			Level:      b.Level,
			Cost:       cost,
			NextPayout: cyclePayout(b, bt),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
