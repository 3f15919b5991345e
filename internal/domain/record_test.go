package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDerivePhase(t *testing.T) {
	testCases := []struct {
		name     string
		amount   decimal.Decimal
		days     int
		expected Phase
	}{
		{name: "fresh", amount: decimal.Zero, days: 0, expected: PhaseAwaitingAmount},
		{name: "zero amount with days", amount: decimal.Zero, days: 5, expected: PhaseAwaitingAmount},
		{name: "amount without days", amount: decimal.NewFromInt(100), days: 0, expected: PhaseAwaitingDays},
		{name: "complete", amount: decimal.NewFromInt(100), days: 10, expected: PhaseActive},
		{name: "negative balance", amount: decimal.NewFromInt(-3), days: 10, expected: PhaseActive},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DerivePhase(tc.amount, tc.days))
		})
	}
}

func TestRecord_CurrentPhaseFallsBackToSentinels(t *testing.T) {
	rec := &Record{TotalAmount: decimal.NewFromInt(100)}
	assert.Equal(t, PhaseAwaitingDays, rec.CurrentPhase())

	rec.Phase = PhaseActive
	assert.Equal(t, PhaseActive, rec.CurrentPhase())
}

func TestRecord_NormalizeKeepsActive(t *testing.T) {
	rec := &Record{TotalAmount: decimal.Zero, Days: 10, Phase: PhaseActive}
	rec.Normalize()
	assert.Equal(t, PhaseActive, rec.Phase)

	onboarding := &Record{TotalAmount: decimal.NewFromInt(50), Days: 3, Phase: PhaseAwaitingAmount}
	onboarding.Normalize()
	assert.Equal(t, PhaseActive, onboarding.Phase)
}

func TestRecord_CloneCopiesPurchases(t *testing.T) {
	rec := NewRecord(1, time.Now(), DefaultTimezoneOffset)
	rec.Purchases = append(rec.Purchases, decimal.NewFromInt(5))

	cp := rec.Clone()
	cp.Purchases[0] = decimal.NewFromInt(7)

	assert.True(t, rec.Purchases[0].Equal(decimal.NewFromInt(5)))
	assert.Equal(t, PhaseAwaitingAmount, rec.Phase)
}
