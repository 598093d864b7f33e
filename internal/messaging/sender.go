// Package messaging defines the contract between the bot and the chat platform and
// provides a NATS bridge and a log-only sender implementing it.
package messaging

import (
	"context"
	"fmt"
)

// Event is an inbound chat message.
type Event struct {
	MessageID       string `json:"message_id"`
	CallerID        string `json:"caller_id"`
	ChannelID       string `json:"channel_id"`
	Text            string `json:"text"`
	IsDirectMessage bool   `json:"is_direct_message"`
	FromBot         bool   `json:"from_bot,omitempty"`
}

// Sender delivers outbound traffic to the chat platform.
type Sender interface {
	// Send posts text to a channel.
	Send(ctx context.Context, channelID, text string) error
	// SendDirect posts text to a caller's direct-message channel.
	SendDirect(ctx context.Context, callerID, text string) error
	// React acknowledges a message with an emoji.
	React(ctx context.Context, channelID, messageID, emoji string) error
	// Ready reports whether channelID can currently be delivered to.
	Ready(ctx context.Context, channelID string) error
}

// Handler consumes inbound events.
type Handler func(ctx context.Context, ev Event)

// Mention formats a reference to a chat user.
func Mention(userID string) string { return fmt.Sprintf("<@%s>", userID) }

// Reaction emojis.
const (
	ReactionOK     = "✅"
	ReactionDenied = "❌"
)
