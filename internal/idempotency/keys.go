package idempotency

import (
	"fmt"
	"strconv"
)

// UpdateKey identifies a Telegram update. Update ids are unique per bot,
// so redeliveries of the same update share the key.
func UpdateKey(updateID int) string {
	return "update:" + strconv.Itoa(updateID)
}

// CallbackKey identifies an inline button press.
func CallbackKey(callbackID string) string {
	return "cb:" + callbackID
}

// MessageKey identifies a message within a chat.
func MessageKey(chatID int64, messageID int) string {
	return fmt.Sprintf("msg:%d:%d", chatID, messageID)
}
