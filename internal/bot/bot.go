// Package bot turns inbound chat events into feedings, adoptions and commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/feedbot/internal/adoption"
	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/dispatch"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/messaging"
)

// Settings are the chat-facing parameters.
type Settings struct {
	FeedChannelID string
	Trigger       string
	Prefix        string
}

// TestModeReader reports whether inbound traffic is logged.
type TestModeReader interface {
	TestMode() bool
}

// Bot handles inbound events.
type Bot struct {
	settings   Settings
	engine     *lifecycle.Engine
	dispatcher *dispatch.Dispatcher
	sender     messaging.Sender
	runtime    TestModeReader
	clock      *civil.Clock
	adoptions  *adoption.Manager
}

// Config wires a Bot.
type Config struct {
	Settings   Settings
	Engine     *lifecycle.Engine
	Dispatcher *dispatch.Dispatcher
	Sender     messaging.Sender
	Runtime    TestModeReader
	Clock      *civil.Clock
	// Adoption configures the handshake; Sender and Complete are filled in.
	Adoption adoption.Config
}

// New returns a bot.
func New(cfg Config) *Bot {
	b := &Bot{
		settings:   cfg.Settings,
		engine:     cfg.Engine,
		dispatcher: cfg.Dispatcher,
		sender:     cfg.Sender,
		runtime:    cfg.Runtime,
		clock:      cfg.Clock,
	}
	if b.clock == nil {
		b.clock = civil.NewClock(nil, nil)
	}
	ac := cfg.Adoption
	ac.Sender = cfg.Sender
	ac.Complete = b.completeAdoption
	b.adoptions = adoption.NewManager(ac)
	return b
}

// Adoptions exposes the handshake manager.
func (b *Bot) Adoptions() *adoption.Manager { return b.adoptions }

// Handle processes one inbound event. It is safe for concurrent use.
func (b *Bot) Handle(ctx context.Context, ev messaging.Event) {
	if ev.FromBot {
		return
	}
	if b.runtime != nil && b.runtime.TestMode() {
		slog.Info("Inbound message",
			logfields.OwnerID(ev.CallerID),
			logfields.ChannelID(ev.ChannelID),
			logfields.MessageID(ev.MessageID),
			slog.Bool("direct", ev.IsDirectMessage),
			slog.String("text", ev.Text))
	}

	// Commands win over an open handshake, so "!status" is never taken as a name.
	if req, ok := dispatch.Parse(ev.Text, b.settings.Prefix); ok {
		req.CallerID = ev.CallerID
		req.ChannelID = ev.ChannelID
		b.reply(ctx, ev, b.dispatcher.Dispatch(ctx, req))
		return
	}

	if ev.IsDirectMessage && b.adoptions.Deliver(ev.CallerID, ev.Text) {
		return
	}

	if ev.IsDirectMessage || ev.ChannelID != b.settings.FeedChannelID {
		return
	}
	if strings.Contains(ev.Text, b.settings.Trigger) {
		b.feed(ctx, ev)
	}
}

func (b *Bot) reply(ctx context.Context, ev messaging.Event, text string) {
	var err error
	if ev.IsDirectMessage {
		err = b.sender.SendDirect(ctx, ev.CallerID, text)
	} else {
		err = b.sender.Send(ctx, ev.ChannelID, text)
	}
	if err != nil {
		slog.Warn("Failed to send reply", logfields.OwnerID(ev.CallerID), logfields.Error(err))
	}
}

func (b *Bot) feed(ctx context.Context, ev messaging.Event) {
	result, p, err := b.engine.Feed(ctx, ev.CallerID, b.clock.Now())
	if err != nil {
		slog.Error("Feeding failed", logfields.OwnerID(ev.CallerID), logfields.Error(err))
		return
	}
	log := slog.With(logfields.OwnerID(ev.CallerID), logfields.Result(string(result)))
	switch result {
	case lifecycle.NoSuchPet:
		if !b.adoptions.Begin(ctx, ev.CallerID, ev.ChannelID) {
			log.Debug("Adoption already in progress")
		}
	case lifecycle.Fed:
		log.Debug("Fed pet", logfields.PetName(p.Name))
		if err := b.sender.React(ctx, ev.ChannelID, ev.MessageID, messaging.ReactionOK); err != nil {
			log.Warn("Failed to acknowledge feeding", logfields.Error(err))
		}
	default:
		log.Debug("Feeding ignored")
	}
}

func (b *Bot) completeAdoption(ctx context.Context, req adoption.Request) error {
	p, err := b.engine.Adopt(ctx, req.CallerID, req.Name, b.clock.Now())
	if errors.Is(err, lifecycle.ErrPetExists) {
		slog.Info("Owner adopted elsewhere meanwhile", logfields.OwnerID(req.CallerID))
		return err
	}
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("%s has adopted a new pet named '%s'! Don't forget to feed it.",
		messaging.Mention(req.CallerID), p.Name)
	channel := req.ChannelID
	if channel == "" {
		channel = b.settings.FeedChannelID
	}
	if err := b.sender.Send(ctx, channel, msg); err != nil {
		slog.Warn("Failed to announce adoption", logfields.OwnerID(req.CallerID), logfields.Error(err))
	}
	return nil
}
