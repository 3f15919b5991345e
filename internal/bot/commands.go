package bot

// Command constants for Telegram bot commands.
const (
	CommandStart       = "/start"
	CommandStatus      = "/status"
	CommandReport      = "/report"
	CommandRefund      = "/refund"
	CommandSetLimit    = "/setlimit"
	CommandSetDays     = "/setdays"
	CommandSetTimezone = "/settimezone"
	CommandStop        = "/stop"
	CommandHelp        = "/help"
)

// commandText is the label used in logs and metrics for free-text updates.
const commandText = "text"

// menuCommands are published to Telegram's command menu.
var menuCommands = []struct {
	Command     string
	Description string
}{
	{CommandStart, "Start tracking a budget"},
	{CommandStatus, "Balance and daily budget"},
	{CommandReport, "List purchases"},
	{CommandRefund, "Return an amount to the budget"},
	{CommandSetLimit, "Replace the balance"},
	{CommandSetDays, "Change the number of days"},
	{CommandSetTimezone, "Set the UTC offset"},
	{CommandStop, "Delete all data"},
	{CommandHelp, "List commands"},
}
