// Package cost prices paid operations and answers affordability questions
// against the wallet. The check is advisory: the balance is shared with
// spenders outside this process, so two actions racing past the gate is
// accepted and reconciled on the next tick.
package cost

import (
	"context"
	"fmt"
	"time"
)

// Operation identifies a billable call.
type Operation string

const (
	OpThought      Operation = "LLM_THOUGHT"
	OpContent      Operation = "LLM_CONTENT"
	OpPublish      Operation = "PUBLISH"
	OpBalanceCheck Operation = "BALANCE_CHECK"
	OpSignal       Operation = "SIGNAL_BROADCAST"
	OpStoreWrite   Operation = "STORE_WRITE"
)

// usdCosts estimates per-call USD cost from paid-tier API pricing.
var usdCosts = map[Operation]float64{
	OpThought:      0.002,
	OpContent:      0.003,
	OpPublish:      0.001,
	OpBalanceCheck: 0.0001,
	OpSignal:       0.0002,
	OpStoreWrite:   0.00002,
}

const (
	// BaseDailyUSD is hosting burn incurred regardless of activity.
	BaseDailyUSD = 0.17
	// DefaultDailyOpsUSD estimates operation burn with no expense history.
	DefaultDailyOpsUSD = 0.02
)

// USD returns the estimated dollar cost of op.
func USD(op Operation) float64 {
	return usdCosts[op]
}

// ToCoin converts a USD amount at the given coin price.
func ToCoin(usd, coinPriceUSD float64) float64 {
	if coinPriceUSD <= 0 {
		return 0
	}
	return usd / coinPriceUSD
}

// ExpenseStore is the slice of the persistence layer the tracker needs.
type ExpenseStore interface {
	AppendExpense(amount float64, label string, at time.Time) error
	ExpensesSince(t time.Time) (float64, error)
}

// PriceFunc returns the coin's USD price.
type PriceFunc func(ctx context.Context) (float64, error)

// Tracker records expenses and computes effective budget.
type Tracker struct {
	store ExpenseStore
	price PriceFunc
	now   func() time.Time
}

func NewTracker(store ExpenseStore, price PriceFunc) *Tracker {
	return &Tracker{store: store, price: price, now: time.Now}
}

// SetClock overrides the clock, for tests.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Track records op in the expense ledger, denominated in coin.
func (t *Tracker) Track(ctx context.Context, op Operation) (float64, error) {
	price, err := t.price(ctx)
	if err != nil {
		return 0, fmt.Errorf("track %s: %w", op, err)
	}
	amount := ToCoin(USD(op), price)
	label := fmt.Sprintf("%s ($%g)", op, USD(op))
	if err := t.store.AppendExpense(amount, label, t.now().UTC()); err != nil {
		return 0, err
	}
	return amount, nil
}

// EffectiveBudget is balance minus what was already spent today (UTC).
func (t *Tracker) EffectiveBudget(balance float64) (float64, error) {
	midnight := t.now().UTC().Truncate(24 * time.Hour)
	spent, err := t.store.ExpensesSince(midnight)
	if err != nil {
		return 0, err
	}
	budget := balance - spent
	if budget < 0 {
		budget = 0
	}
	return budget, nil
}

// CanAfford reports whether the effective budget covers op at the current
// coin price.
func (t *Tracker) CanAfford(ctx context.Context, op Operation, balance float64) (bool, error) {
	price, err := t.price(ctx)
	if err != nil {
		return false, err
	}
	budget, err := t.EffectiveBudget(balance)
	if err != nil {
		return false, err
	}
	return budget >= ToCoin(USD(op), price), nil
}

// DailyBurn estimates daily spend in coin: base hosting plus the trailing
// 7-day operation average (or a default when history is empty).
func (t *Tracker) DailyBurn(ctx context.Context) (float64, error) {
	price, err := t.price(ctx)
	if err != nil {
		return 0, err
	}
	weekAgo := t.now().UTC().Add(-7 * 24 * time.Hour)
	spent, err := t.store.ExpensesSince(weekAgo)
	if err != nil {
		return 0, err
	}
	ops := ToCoin(DefaultDailyOpsUSD, price)
	if spent > 0 {
		ops = spent / 7
	}
	return ToCoin(BaseDailyUSD, price) + ops, nil
}
