// Package notify routes newly classified messages onto severity channels
// and suppresses notifications for the conversation the user is viewing.
package notify

// ChannelID identifies a fixed notification channel.
type ChannelID string

const (
	ChannelCritical   ChannelID = "channel_critical"
	ChannelImportant  ChannelID = "channel_important"
	ChannelGeneral    ChannelID = "channel_general"
	ChannelMinimal    ChannelID = "channel_minimal"
	ChannelSummary    ChannelID = "channel_summary"
	ChannelProcessing ChannelID = "sms_processing_channel"
)

// Channel describes one registered channel.
type Channel struct {
	ID          ChannelID
	Name        string
	Description string
}

// Channels is the fixed registry: five severity channels plus the
// operational channel for ingestion-progress notifications.
var Channels = []Channel{
	{ChannelCritical, "Critical Messages", "Messages that require immediate attention with sound and popup."},
	{ChannelImportant, "Important Messages", "Messages with sound but no popup."},
	{ChannelGeneral, "General Updates", "Silent messages shown in the notification drawer."},
	{ChannelMinimal, "Minimal Priority", "No notification, hidden from drawer."},
	{ChannelSummary, "Daily Summary", "Silent daily digest of messages."},
	{ChannelProcessing, "SMS Processing", "Service notification for SMS processing status."},
}

// ChannelForTier maps an importance tier onto its channel. Tiers 1-2 are
// suppressed: ok is false and nothing should be dispatched.
func ChannelForTier(tier int) (ChannelID, bool) {
	switch tier {
	case 5:
		return ChannelCritical, true
	case 4:
		return ChannelImportant, true
	case 3:
		return ChannelGeneral, true
	default:
		return ChannelMinimal, false
	}
}
