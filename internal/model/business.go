package model

import "time"

// ProductionState is the lifecycle state of a business's current cycle.
type ProductionState string

const (
	ProductionIdle      ProductionState = "IDLE"
	ProductionProducing ProductionState = "PRODUCING"
	ProductionReady     ProductionState = "READY"
)

// OwnedBusiness is one account's holding of a business type. Count tracks
// repeat purchases of the same type; Stock is banked resource units not yet
// consumed by a cycle.
type OwnedBusiness struct {
	ID        int64
	AccountID int64
	TypeID    int
	Count     int
	Level     int
	Stock     int64
	State     ProductionState
	StartedAt *time.Time
}
