package budget

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/budget-bot/internal/domain"
)

var (
	// ErrInvalidAmount is returned for text that is not a positive decimal.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidDays is returned for text that is not a positive integer.
	ErrInvalidDays = errors.New("invalid day count")
	// ErrInvalidOffset is returned for malformed or out-of-range ±HH:MM offsets.
	ErrInvalidOffset = errors.New("invalid timezone offset")
)

// MaxDays bounds day counts to what the records table can hold.
const MaxDays = 36500

var (
	offsetPattern = regexp.MustCompile(`^([+-]?)(\d{1,2}):(\d{2})$`)
	// amountPattern admits plain notation only, at most cents precision.
	amountPattern = regexp.MustCompile(`^\d{1,12}(\.\d{1,2})?$`)
)

// normalizeDecimal accepts a comma as decimal separator.
func normalizeDecimal(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
}

// ParseAmount parses a strictly positive decimal amount in plain notation
// with up to two fraction digits.
func ParseAmount(text string) (decimal.Decimal, error) {
	normalized := normalizeDecimal(text)
	if !amountPattern.MatchString(normalized) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q is not positive", ErrInvalidAmount, text)
	}

	return amount, nil
}

// ParseDays parses a strictly positive whole number of days.
func ParseDays(text string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDays, text)
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidDays, text)
	}
	if days > MaxDays {
		return 0, fmt.Errorf("%w: %q exceeds %d", ErrInvalidDays, text, MaxDays)
	}

	return days, nil
}

// ParseOffset parses a signed HH:MM UTC offset into decimal hours.
func ParseOffset(text string) (float64, error) {
	match := offsetPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, text)
	}

	hours, _ := strconv.Atoi(match[2])
	minutes, _ := strconv.Atoi(match[3])
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidOffset, text)
	}

	offset := float64(hours) + float64(minutes)/60
	if match[1] == "-" {
		offset = -offset
	}

	if offset < domain.MinTimezoneOffset || offset > domain.MaxTimezoneOffset {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidOffset, text)
	}

	return offset, nil
}

// FormatOffset renders decimal hours back as ±HH:MM.
func FormatOffset(offsetHours float64) string {
	sign := "+"
	if offsetHours < 0 {
		sign = "-"
	}

	total := int(math.Round(math.Abs(offsetHours) * 60))
	return fmt.Sprintf("%s%02d:%02d", sign, total/60, total%60)
}
