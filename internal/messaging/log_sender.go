package messaging

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/feedbot/internal/logfields"
)

// LogSender writes outbound traffic to the log instead of a chat platform. One-shot
// CLI runs use it.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s LogSender) Send(_ context.Context, channelID, text string) error {
	s.logger().Info(text, logfields.ChannelID(channelID))
	return nil
}

func (s LogSender) SendDirect(_ context.Context, callerID, text string) error {
	s.logger().Info(text, logfields.OwnerID(callerID))
	return nil
}

func (s LogSender) React(_ context.Context, channelID, messageID, emoji string) error {
	s.logger().Info("reaction "+emoji, logfields.ChannelID(channelID), logfields.MessageID(messageID))
	return nil
}

func (LogSender) Ready(context.Context, string) error { return nil }
