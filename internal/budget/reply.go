package budget

import "strconv"

// Message catalog keys. Every reply the core produces is one or more lines
// referencing these keys; the transport renders them in the user's language.
const (
	KeyUseInit       = "errors.use_init"
	KeyNoData        = "errors.no_data"
	KeyInvalidAmount = "errors.invalid_amount"
	KeyInvalidDays   = "errors.invalid_days"

	KeyWelcome        = "init.welcome"
	KeyAlreadyStarted = "init.already_started"
	KeyAskDays        = "onboarding.ask_days"
	KeyStartBudget    = "onboarding.daily_budget"

	KeyPurchaseAdded = "purchase.added"
	KeyBalance       = "budget.balance"
	KeyDailyBudget   = "budget.daily"
	KeyNextPeriod    = "budget.next_period"
	KeyUntilMidnight = "budget.until_midnight"

	KeyReportEmpty  = "report.empty"
	KeyReportHeader = "report.header"
	KeyReportItem   = "report.item"

	KeyRefundInvalid   = "refund.invalid"
	KeyRefundDone      = "refund.done"
	KeySetLimitInvalid = "setlimit.invalid"
	KeySetLimitDone    = "setlimit.done"
	KeySetDaysInvalid  = "setdays.invalid"
	KeySetDaysDone     = "setdays.done"
	KeyTimezoneInvalid = "settimezone.invalid"
	KeyTimezoneDone    = "settimezone.done"
	KeyStopDone        = "stop.done"
	KeyHelp            = "help.text"
)

// Line is one localizable line of a reply.
type Line struct {
	Key    string
	Params map[string]string
}

// Reply is the payload returned for one inbound message.
type Reply struct {
	Lines []Line
	// Page and Pages are set for paginated replies (report).
	Page  int
	Pages int
}

func newReply(key string, params map[string]string) Reply {
	return Reply{Lines: []Line{{Key: key, Params: params}}}
}

func (r *Reply) add(key string, params map[string]string) {
	r.Lines = append(r.Lines, Line{Key: key, Params: params})
}

// Keys lists the line keys in order.
func (r Reply) Keys() []string {
	keys := make([]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		keys = append(keys, line.Key)
	}
	return keys
}

// Param returns the first value of name across all lines.
func (r Reply) Param(name string) string {
	for _, line := range r.Lines {
		if value, ok := line.Params[name]; ok {
			return value
		}
	}
	return ""
}

// HasKey reports whether any line uses key.
func (r Reply) HasKey(key string) bool {
	for _, line := range r.Lines {
		if line.Key == key {
			return true
		}
	}
	return false
}

// projectionLines appends the daily budget lines shared by status and purchases.
func (r *Reply) projectionLines(p Projection) {
	r.add(KeyDailyBudget, map[string]string{
		"remaining_days": strconv.Itoa(p.RemainingDays),
		"daily_budget":   FormatMoney(p.DailyBudget),
	})
	if p.HasNextPeriod {
		r.add(KeyNextPeriod, map[string]string{
			"next_budget": FormatMoney(p.NextPeriod),
		})
	}
}
