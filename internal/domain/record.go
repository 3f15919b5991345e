// Package domain holds the entities persisted by the bot.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimezoneOffset is the UTC offset, in hours, assigned to new records.
const DefaultTimezoneOffset = 4.0

// Timezone offset bounds in hours.
const (
	MinTimezoneOffset = -12.0
	MaxTimezoneOffset = 14.0
)

// Phase is the conversation stage a record is in.
type Phase string

const (
	// PhaseAwaitingAmount waits for the initial sum of money.
	PhaseAwaitingAmount Phase = "awaiting_amount"
	// PhaseAwaitingDays waits for the number of days the money must last.
	PhaseAwaitingDays Phase = "awaiting_days"
	// PhaseActive accepts purchases.
	PhaseActive Phase = "active"
)

// IsOnboarding reports whether the phase precedes PhaseActive.
func (p Phase) IsOnboarding() bool {
	return p == PhaseAwaitingAmount || p == PhaseAwaitingDays
}

// DerivePhase infers the phase from the zero sentinels of amount and days.
func DerivePhase(totalAmount decimal.Decimal, days int) Phase {
	switch {
	case totalAmount.IsZero():
		return PhaseAwaitingAmount
	case days == 0:
		return PhaseAwaitingDays
	default:
		return PhaseActive
	}
}

// Record is the budget state of a single user.
type Record struct {
	UserID         int64             `json:"user_id"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Days           int               `json:"days"`
	StartDate      time.Time         `json:"start_date"`
	Purchases      []decimal.Decimal `json:"purchases"`
	TimezoneOffset float64           `json:"timezone_offset"`
	Phase          Phase             `json:"phase"`
}

// NewRecord returns a fresh onboarding record started at now.
func NewRecord(userID int64, now time.Time, timezoneOffset float64) *Record {
	return &Record{
		UserID:         userID,
		TotalAmount:    decimal.Zero,
		StartDate:      now.UTC(),
		Purchases:      []decimal.Decimal{},
		TimezoneOffset: timezoneOffset,
		Phase:          PhaseAwaitingAmount,
	}
}

// CurrentPhase returns the stored phase, deriving it for records saved without one.
func (r *Record) CurrentPhase() Phase {
	if r.Phase == "" {
		return DerivePhase(r.TotalAmount, r.Days)
	}
	return r.Phase
}

// Normalize re-derives the phase of an onboarding record after a mutation.
// Active records stay active.
func (r *Record) Normalize() {
	if r.CurrentPhase() == PhaseActive {
		r.Phase = PhaseActive
		return
	}
	r.Phase = DerivePhase(r.TotalAmount, r.Days)
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cp := *r
	cp.Purchases = make([]decimal.Decimal, len(r.Purchases))
	copy(cp.Purchases, r.Purchases)
	return &cp
}
