// Package catalog holds the static game data: purchasable business types and
// tradable market items. Prices here are base values; live market prices are
// persisted and jittered by the sweep.
package catalog

import "sort"

// MarketItem is a tradable resource.
type MarketItem struct {
	ID         int
	Name       string
	BasePrice  int64
	Volatility float64
}

// BusinessType is a purchasable business blueprint.
type BusinessType struct {
	ID              int
	Name            string
	Cost            int64
	ResourceID      int   // market item consumed per production cycle
	UnitsPerCycle   int64 // resource units one cycle consumes
	BasePayout      int64
	MaxLevel        int
	UpgradeCostMult float64
	PayoutMult      float64
}

// Catalog groups the static data so tests can substitute their own.
type Catalog struct {
	Items      map[int]MarketItem
	Businesses map[int]BusinessType
}

// Item returns the market item by id.
func (c *Catalog) Item(id int) (MarketItem, bool) {
	it, ok := c.Items[id]
	return it, ok
}

// Business returns the business type by id.
func (c *Catalog) Business(id int) (BusinessType, bool) {
	b, ok := c.Businesses[id]
	return b, ok
}

// BusinessList returns the business types ordered by id, for display.
func (c *Catalog) BusinessList() []BusinessType {
	out := make([]BusinessType, 0, len(c.Businesses))
	for _, b := range c.Businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default returns the stock BongoCity catalog.
func Default() *Catalog {
	return &Catalog{
		Items: map[int]MarketItem{
			1: {ID: 1, Name: "Lumber", BasePrice: 500, Volatility: 0.15},
			2: {ID: 2, Name: "Iron", BasePrice: 1200, Volatility: 0.20},
			3: {ID: 3, Name: "Oil", BasePrice: 3000, Volatility: 0.30},
		},
		Businesses: map[int]BusinessType{
			101: {
				ID: 101, Name: "Sawmill", Cost: 15000,
				ResourceID: 1, UnitsPerCycle: 10,
				BasePayout: 1000, MaxLevel: 10,
				UpgradeCostMult: 1.5, PayoutMult: 1.25,
			},
			102: {
				ID: 102, Name: "Mine", Cost: 50000,
				ResourceID: 2, UnitsPerCycle: 15,
				BasePayout: 3500, MaxLevel: 15,
				UpgradeCostMult: 1.6, PayoutMult: 1.3,
			},
		},
	}
}
