package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Translation keys shown to users for each error family.
const (
	MessageInternal    = "errors.internal"
	MessageValidation  = "errors.validation"
	MessageUnavailable = "errors.unavailable"
	MessageExternal    = "errors.external"
	MessageState       = "errors.state"
	MessageRateLimited = "errors.rate_limited"
	MessageBusy        = "errors.busy"
)

// AppError carries a classification used for logging, retries and the reply
// shown to the user. UserMessage is a translation key; UserParams fills it.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	UserParams  map[string]string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: MessageValidation,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: MessageUnavailable,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("External API error: %s", apiName),
		UserMessage: MessageExternal,
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: MessageState,
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}

// NewBusyError reports that another update for the same user still holds
// the record lock.
func NewBusyError(cause error) *AppError {
	return &AppError{
		Code:        "E410",
		Message:     "record is locked by a concurrent update",
		UserMessage: MessageBusy,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: MessageRateLimited,
		UserParams:  map[string]string{"seconds": fmt.Sprintf("%d", retryAfter)},
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
