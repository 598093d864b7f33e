package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
)

// Outbound kinds.
const (
	KindMessage  = "message"
	KindDirect   = "direct"
	KindReaction = "reaction"
)

// Outbound is published for the platform gateway to deliver.
type Outbound struct {
	Kind      string    `json:"kind"`
	ChannelID string    `json:"channel_id,omitempty"`
	CallerID  string    `json:"caller_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// BridgeConfig configures a NATSBridge.
type BridgeConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	Name          string
}

// InboundSubject is where the gateway publishes chat events.
func (c BridgeConfig) InboundSubject() string { return c.SubjectPrefix + ".inbound" }

// OutboundSubject is where the bot publishes its traffic.
func (c BridgeConfig) OutboundSubject() string { return c.SubjectPrefix + ".outbound" }

type publisher interface {
	Publish(subj string, data []byte) error
	IsConnected() bool
}

// NATSBridge exchanges chat traffic with a platform gateway over NATS.
type NATSBridge struct {
	cfg BridgeConfig
	nc  *nats.Conn
	pub publisher
	sub *nats.Subscription
}

// DialNATS connects to the broker and authenticates with the bot token. An
// unreachable broker is retried in the background; Ready reports it until then.
func DialNATS(cfg BridgeConfig) (*NATSBridge, error) {
	name := cfg.Name
	if name == "" {
		name = "feedbot"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("Disconnected from NATS", logfields.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryMessaging, ErrConnect.Message()).
			WithContext("url", cfg.URL).Build()
	}
	slog.Info("Connected to NATS",
		slog.String("url", cfg.URL),
		logfields.Subject(cfg.SubjectPrefix))
	return &NATSBridge{cfg: cfg, nc: nc, pub: nc}, nil
}

// Subscribe delivers inbound events to h until ctx is done or Close is called.
// Undecodable payloads are logged and dropped.
func (b *NATSBridge) Subscribe(ctx context.Context, h Handler) error {
	sub, err := b.nc.Subscribe(b.cfg.InboundSubject(), func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("Dropping malformed inbound event", logfields.Subject(msg.Subject), logfields.Error(err))
			return
		}
		h(ctx, ev)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryMessaging, "failed to subscribe").
			WithContext("subject", b.cfg.InboundSubject()).Build()
	}
	b.sub = sub
	return nil
}

// DecodeEvent parses an inbound payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.CallerID == "" {
		return Event{}, errors.ValidationError("inbound event has no caller id").Build()
	}
	return ev, nil
}

func (b *NATSBridge) publish(out Outbound) error {
	if !b.pub.IsConnected() {
		return ErrNotConnected
	}
	out.SentAt = time.Now().UTC()
	data, err := json.Marshal(out)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "encode outbound message").Build()
	}
	if err := b.pub.Publish(b.cfg.OutboundSubject(), data); err != nil {
		return errors.WrapError(err, errors.CategoryMessaging, ErrPublish.Message()).Build()
	}
	return nil
}

// Send posts text to a channel.
func (b *NATSBridge) Send(_ context.Context, channelID, text string) error {
	if channelID == "" {
		return ErrNoChannel
	}
	return b.publish(Outbound{Kind: KindMessage, ChannelID: channelID, Text: text})
}

// SendDirect posts text to a caller's direct messages.
func (b *NATSBridge) SendDirect(_ context.Context, callerID, text string) error {
	return b.publish(Outbound{Kind: KindDirect, CallerID: callerID, Text: text})
}

// React acknowledges a message with emoji.
func (b *NATSBridge) React(_ context.Context, channelID, messageID, emoji string) error {
	return b.publish(Outbound{Kind: KindReaction, ChannelID: channelID, MessageID: messageID, Emoji: emoji})
}

// Ready fails when the broker is unreachable or channelID is empty.
func (b *NATSBridge) Ready(_ context.Context, channelID string) error {
	if channelID == "" {
		return ErrNoChannel
	}
	if !b.pub.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close drains the subscription and closes the connection.
func (b *NATSBridge) Close() error {
	if b.nc == nil {
		return nil
	}
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	return b.nc.Drain()
}
