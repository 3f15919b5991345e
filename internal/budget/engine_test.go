package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/internal/domain"
)

func TestConverse_AwaitingAmount(t *testing.T) {
	now := mustTime(t, "2024-03-10T12:00:00Z")
	rec := domain.NewRecord(1, now, 4)

	out := Converse(rec, "100", now)

	require.NotNil(t, out.Record)
	assert.Equal(t, "100", out.Record.TotalAmount.String())
	assert.Equal(t, 0, out.Record.Days)
	assert.Equal(t, []string{KeyAskDays}, out.Reply.Keys())
	assert.True(t, rec.TotalAmount.IsZero(), "input record must not be mutated")

	out = Converse(rec, "nope", now)
	assert.Nil(t, out.Record)
	assert.Equal(t, []string{KeyInvalidAmount}, out.Reply.Keys())
}

func TestConverse_AwaitingDaysResetsStartDate(t *testing.T) {
	created := mustTime(t, "2024-03-08T12:00:00Z")
	now := mustTime(t, "2024-03-10T12:00:00Z")
	rec := domain.NewRecord(1, created, 4)
	rec.TotalAmount = decimal.NewFromInt(100)
	rec.Phase = domain.PhaseAwaitingDays

	out := Converse(rec, "10", now)

	require.NotNil(t, out.Record)
	assert.Equal(t, 10, out.Record.Days)
	assert.True(t, out.Record.StartDate.Equal(now))
	assert.Equal(t, []string{KeyStartBudget}, out.Reply.Keys())
	assert.Equal(t, "10.00", out.Reply.Param("daily_budget"))

	out = Converse(rec, "0", now)
	assert.Nil(t, out.Record)
	assert.Equal(t, []string{KeyInvalidDays}, out.Reply.Keys())
}

func TestConverse_Purchase(t *testing.T) {
	now := mustTime(t, "2024-03-10T12:00:00Z")
	rec := &domain.Record{
		UserID:         1,
		TotalAmount:    decimal.NewFromInt(100),
		Days:           10,
		StartDate:      now,
		Purchases:      []decimal.Decimal{},
		TimezoneOffset: 4,
		Phase:          domain.PhaseActive,
	}

	out := Converse(rec, "15", now)

	require.NotNil(t, out.Record)
	assert.Equal(t, "85", out.Record.TotalAmount.String())
	require.Len(t, out.Record.Purchases, 1)
	assert.Equal(t, "15", out.Record.Purchases[0].String())
	assert.Empty(t, rec.Purchases)

	assert.Equal(t, []string{KeyPurchaseAdded, KeyBalance, KeyDailyBudget, KeyNextPeriod}, out.Reply.Keys())
	assert.Equal(t, "15.00", out.Reply.Param("purchase"))
	assert.Equal(t, "85.00", out.Reply.Param("balance"))
	assert.Equal(t, "10", out.Reply.Param("remaining_days"))
	assert.Equal(t, "8.50", out.Reply.Param("daily_budget"))
	assert.Equal(t, "9.44", out.Reply.Param("next_budget"))
}

func TestConverse_PurchaseMayOverspend(t *testing.T) {
	now := mustTime(t, "2024-03-10T12:00:00Z")
	rec := &domain.Record{
		TotalAmount: decimal.NewFromInt(10),
		Days:        1,
		StartDate:   now,
		Phase:       domain.PhaseActive,
	}

	out := Converse(rec, "25.5", now)

	require.NotNil(t, out.Record)
	assert.Equal(t, "-15.50", FormatMoney(out.Record.TotalAmount))
	assert.False(t, out.Reply.HasKey(KeyNextPeriod))
}

func TestConverse_LegacyRecordWithoutPhase(t *testing.T) {
	now := mustTime(t, "2024-03-10T12:00:00Z")
	rec := &domain.Record{TotalAmount: decimal.NewFromInt(50), StartDate: now}

	out := Converse(rec, "5", now)

	require.NotNil(t, out.Record)
	assert.Equal(t, 5, out.Record.Days)
	assert.Equal(t, []string{KeyStartBudget}, out.Reply.Keys())
}
