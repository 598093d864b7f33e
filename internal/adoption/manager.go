// Package adoption runs the per-caller naming handshake that precedes adopting a pet.
package adoption

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/messaging"
	"git.home.luguber.info/inful/feedbot/internal/metrics"
	"git.home.luguber.info/inful/feedbot/internal/pet"
)

// DefaultTimeout bounds each step of the handshake.
const DefaultTimeout = 60 * time.Second

// Request is a confirmed adoption.
type Request struct {
	CallerID  string
	ChannelID string
	Name      string
}

// Completer performs the adoption once the caller confirmed a name.
type Completer func(ctx context.Context, req Request) error

// Config configures a Manager.
type Config struct {
	Sender      messaging.Sender
	Complete    Completer
	DefaultName string
	Timeout     time.Duration
	Clock       clockwork.Clock
	Recorder    metrics.Recorder
}

// Manager tracks at most one handshake per caller.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

type session struct {
	id        string
	callerID  string
	channelID string
	replies   chan string

	mu    sync.Mutex
	state State
}

func (s *session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *session) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NewManager returns a manager. Zero values in cfg get defaults.
func NewManager(cfg Config) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*session)}
}

// Begin starts a handshake for callerID, who triggered it in channelID. It returns
// false when the caller already has one in progress.
func (m *Manager) Begin(ctx context.Context, callerID, channelID string) bool {
	m.mu.Lock()
	if _, busy := m.sessions[callerID]; busy {
		m.mu.Unlock()
		return false
	}
	s := &session{
		id:        uuid.NewString(),
		callerID:  callerID,
		channelID: channelID,
		replies:   make(chan string, 8),
		state:     AwaitingName,
	}
	m.sessions[callerID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.remove(s)
		m.run(ctx, s)
	}()
	return true
}

// Deliver hands a direct-message reply to the caller's handshake. It reports whether
// a handshake consumed it.
func (m *Manager) Deliver(callerID, text string) bool {
	m.mu.Lock()
	s, ok := m.sessions[callerID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case s.replies <- text:
		return true
	default:
		slog.Debug("Dropping adoption reply, buffer full", logfields.OwnerID(callerID))
		return true
	}
}

// Active returns the state of the caller's handshake, if one is in progress.
func (m *Manager) Active(callerID string) (State, bool) {
	m.mu.Lock()
	s, ok := m.sessions[callerID]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	return s.current(), true
}

// Wait blocks until every handshake has ended. Cancel the context passed to Begin
// to end them early.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) remove(s *session) {
	m.mu.Lock()
	if m.sessions[s.callerID] == s {
		delete(m.sessions, s.callerID)
	}
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, s *session) {
	log := slog.With(logfields.Session(s.id), logfields.OwnerID(s.callerID))
	log.Info("Adoption started")

	for {
		s.setState(AwaitingName)
		if err := m.cfg.Sender.SendDirect(ctx, s.callerID, "What would you like to name your pet?"); err != nil {
			log.Warn("Could not DM caller", logfields.Error(err))
			m.fallback(ctx, s)
			m.cfg.Recorder.IncAdoption(metrics.AdoptionFailed)
			s.setState(Done)
			return
		}
		reply, ok := m.await(ctx, s, func(string) bool { return true })
		if !ok {
			m.timedOut(log, s)
			return
		}
		name := pet.NormalizeName(reply, m.cfg.DefaultName)

		s.setState(AwaitingConfirmation)
		prompt := fmt.Sprintf("Would you like to name your pet '%s'? Reply %s (yes) to confirm or %s (no) to pick another name.",
			name, messaging.ReactionOK, messaging.ReactionDenied)
		if err := m.cfg.Sender.SendDirect(ctx, s.callerID, prompt); err != nil {
			log.Warn("Could not DM caller", logfields.Error(err))
			m.cfg.Recorder.IncAdoption(metrics.AdoptionFailed)
			s.setState(Done)
			return
		}
		answer, ok := m.await(ctx, s, func(r string) bool { return ParseAnswer(r) != Unrecognized })
		if !ok {
			m.timedOut(log, s)
			return
		}
		if ParseAnswer(answer) == Deny {
			log.Debug("Name rejected, asking again")
			m.cfg.Recorder.IncAdoption(metrics.AdoptionRejected)
			continue
		}

		s.setState(Done)
		req := Request{CallerID: s.callerID, ChannelID: s.channelID, Name: name}
		if err := m.cfg.Complete(ctx, req); err != nil {
			log.Warn("Adoption failed", logfields.Error(err))
			m.cfg.Recorder.IncAdoption(metrics.AdoptionFailed)
			return
		}
		log.Info("Adoption completed", logfields.PetName(name))
		m.cfg.Recorder.IncAdoption(metrics.AdoptionCompleted)
		return
	}
}

// await returns the first reply accepted by want before the step deadline. Rejected
// replies are ignored without extending the deadline.
func (m *Manager) await(ctx context.Context, s *session, want func(string) bool) (string, bool) {
	timer := m.cfg.Clock.NewTimer(m.cfg.Timeout)
	defer timer.Stop()
	for {
		select {
		case reply := <-s.replies:
			if want(reply) {
				return reply, true
			}
		case <-timer.Chan():
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

func (m *Manager) timedOut(log *slog.Logger, s *session) {
	s.setState(TimedOut)
	m.cfg.Recorder.IncAdoption(metrics.AdoptionTimedOut)
	log.Info("Adoption abandoned", logfields.State(TimedOut.String()))
}

// fallback tells the caller in the trigger channel that DMs are required.
func (m *Manager) fallback(ctx context.Context, s *session) {
	msg := fmt.Sprintf("%s, I couldn't DM you! Please enable direct messages to adopt a pet.", messaging.Mention(s.callerID))
	if err := m.cfg.Sender.Send(ctx, s.channelID, msg); err != nil {
		slog.Warn("Could not post DM fallback", logfields.ChannelID(s.channelID), logfields.Error(err))
	}
}
