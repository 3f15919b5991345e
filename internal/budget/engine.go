package budget

import (
	"time"

	"github.com/Proton-105/budget-bot/internal/domain"
)

// Outcome is the result of applying one message to a record.
// Record is nil when nothing must be written.
type Outcome struct {
	Record *domain.Record
	Reply  Reply
}

// Converse applies one free-text message to an existing record according to
// its phase. rec is not modified; the replacement state is returned instead.
func Converse(rec *domain.Record, text string, now time.Time) Outcome {
	switch rec.CurrentPhase() {
	case domain.PhaseAwaitingAmount:
		return acceptAmount(rec, text)
	case domain.PhaseAwaitingDays:
		return acceptDays(rec, text, now)
	default:
		return acceptPurchase(rec, text, now)
	}
}

func acceptAmount(rec *domain.Record, text string) Outcome {
	amount, err := ParseAmount(text)
	if err != nil {
		return Outcome{Reply: newReply(KeyInvalidAmount, nil)}
	}

	updated := rec.Clone()
	updated.TotalAmount = amount
	updated.Days = 0

	return Outcome{Record: updated, Reply: newReply(KeyAskDays, nil)}
}

func acceptDays(rec *domain.Record, text string, now time.Time) Outcome {
	days, err := ParseDays(text)
	if err != nil {
		return Outcome{Reply: newReply(KeyInvalidDays, nil)}
	}

	updated := rec.Clone()
	updated.Days = days
	updated.StartDate = now.UTC()

	// days > 0 here, so the flat division needs no floor.
	daily := DailyBudget(updated.TotalAmount, days)

	return Outcome{
		Record: updated,
		Reply: newReply(KeyStartBudget, map[string]string{
			"daily_budget": FormatMoney(daily),
		}),
	}
}

func acceptPurchase(rec *domain.Record, text string, now time.Time) Outcome {
	purchase, err := ParseAmount(text)
	if err != nil {
		return Outcome{Reply: newReply(KeyInvalidAmount, nil)}
	}

	updated := rec.Clone()
	updated.Purchases = append(updated.Purchases, purchase)
	updated.TotalAmount = updated.TotalAmount.Sub(purchase)

	projection := Project(updated, now)

	reply := newReply(KeyPurchaseAdded, map[string]string{
		"purchase": FormatMoney(purchase),
	})
	reply.add(KeyBalance, map[string]string{
		"balance": FormatMoney(projection.Balance),
	})
	reply.projectionLines(projection)

	return Outcome{Record: updated, Reply: reply}
}
