package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// CallbackSeparator joins an action and its payload.
	CallbackSeparator = ":"
	// MaxCallbackBytes is Telegram's limit on callback data.
	MaxCallbackBytes  = 64

	// telebot marks data of buttons registered with a unique name this way.
	uniquePrefix = "\f"
)

// ErrEmptyCallback reports a button press without callback data.
var ErrEmptyCallback = errors.New("callback data is empty")

// Callback is what an inline button carries back to the bot.
type Callback struct {
	Action string
	Data   string
}

// ReportPageCallback opens the given page of the purchase report.
func ReportPageCallback(page int) Callback {
	return Callback{Action: ActionReport, Data: strconv.Itoa(page)}
}

// Encode renders the callback as button data.
func (c Callback) Encode() (string, error) {
	if c.Action == "" {
		return "", errors.New("callback action is empty")
	}

	payload := c.Action
	if c.Data != "" {
		payload += CallbackSeparator + c.Data
	}
	if len(payload) > MaxCallbackBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", MaxCallbackBytes, len(payload))
	}

	return payload, nil
}

// Page reads the payload as a report page number.
func (c Callback) Page() int {
	return ParsePage(c.Data)
}

// ParseCallback decodes button data. Everything after the first separator
// is the payload.
func ParseCallback(raw string) (Callback, error) {
	raw = strings.TrimPrefix(raw, uniquePrefix)
	if raw == "" {
		return Callback{}, ErrEmptyCallback
	}

	action, data, _ := strings.Cut(raw, CallbackSeparator)
	return Callback{Action: action, Data: data}, nil
}
