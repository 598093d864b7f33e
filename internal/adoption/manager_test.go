package adoption

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu      sync.Mutex
	dms     map[string][]string
	posts   []string
	dmError error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{dms: make(map[string][]string)}
}

func (r *recordingSender) Send(_ context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, channelID+": "+text)
	return nil
}

func (r *recordingSender) SendDirect(_ context.Context, callerID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dmError != nil {
		return r.dmError
	}
	r.dms[callerID] = append(r.dms[callerID], text)
	return nil
}

func (r *recordingSender) React(context.Context, string, string, string) error { return nil }
func (r *recordingSender) Ready(context.Context, string) error                 { return nil }

func (r *recordingSender) dmCount(callerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dms[callerID])
}

type completions struct {
	mu   sync.Mutex
	reqs []Request
}

func (c *completions) complete(_ context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return nil
}

func (c *completions) all() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.reqs...)
}

func newManager(sender *recordingSender, done *completions, timeout time.Duration) *Manager {
	return NewManager(Config{
		Sender:      sender,
		Complete:    done.complete,
		DefaultName: "JD",
		Timeout:     timeout,
	})
}

func waitIdle(t *testing.T, m *Manager, caller string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, active := m.Active(caller)
		return !active
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandshake_ConfirmedName(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	assert.True(t, m.Deliver("A", "  Rex "))
	assert.True(t, m.Deliver("A", "YES"))
	waitIdle(t, m, "A")

	require.Equal(t, []Request{{CallerID: "A", ChannelID: "feed", Name: "Rex"}}, done.all())
	assert.Equal(t, 2, sender.dmCount("A"), "name prompt and confirmation prompt")
}

func TestHandshake_DenyRestartsNaming(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	for _, reply := range []string{"Rex", "no", "Max", "✅"} {
		m.Deliver("A", reply)
	}
	waitIdle(t, m, "A")

	reqs := done.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Max", reqs[0].Name)
	assert.Equal(t, 4, sender.dmCount("A"))
}

func TestHandshake_UnrecognizedConfirmationIsIgnored(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	for _, reply := range []string{"Rex", "maybe?", "what", "y"} {
		m.Deliver("A", reply)
	}
	waitIdle(t, m, "A")

	reqs := done.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Rex", reqs[0].Name)
}

func TestHandshake_EmptyNameUsesDefault(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	m.Deliver("A", "   ")
	m.Deliver("A", "confirm")
	waitIdle(t, m, "A")

	reqs := done.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "JD", reqs[0].Name)
}

func TestHandshake_TimeoutAbandons(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, 50*time.Millisecond)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	state, active := m.Active("A")
	require.True(t, active)
	assert.Equal(t, AwaitingName, state)

	waitIdle(t, m, "A")
	assert.Empty(t, done.all())
	assert.False(t, m.Deliver("A", "Rex"), "late replies are not consumed")
}

func TestHandshake_TimeoutDuringConfirmation(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, 50*time.Millisecond)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	m.Deliver("A", "Rex")
	waitIdle(t, m, "A")
	assert.Empty(t, done.all())
}

func TestHandshake_SecondTriggerIgnored(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	assert.False(t, m.Begin(context.Background(), "A", "feed"))

	m.Deliver("A", "Rex")
	m.Deliver("A", "yes")
	waitIdle(t, m, "A")
	assert.Len(t, done.all(), 1)
}

func TestHandshake_CallersAreIndependent(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Second)
	ctx := context.Background()

	callers := []string{"1", "2", "3", "4", "5"}
	for _, c := range callers {
		require.True(t, m.Begin(ctx, c, "feed"))
	}
	var wg sync.WaitGroup
	for _, c := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Deliver(c, "pet-"+c)
			m.Deliver(c, "y")
		}()
	}
	wg.Wait()
	m.Wait()

	names := map[string]string{}
	for _, r := range done.all() {
		names[r.CallerID] = r.Name
	}
	require.Len(t, names, len(callers))
	for _, c := range callers {
		assert.Equal(t, fmt.Sprintf("pet-%s", c), names[c])
	}
}

func TestHandshake_DMFailureFallsBackToChannel(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	sender.dmError = errors.New("forbidden")
	m := newManager(sender, done, time.Second)

	require.True(t, m.Begin(context.Background(), "A", "feed"))
	waitIdle(t, m, "A")

	assert.Empty(t, done.all())
	require.Len(t, sender.posts, 1)
	assert.Contains(t, sender.posts[0], "<@A>")
}

func TestHandshake_CancelledContext(t *testing.T) {
	sender, done := newRecordingSender(), &completions{}
	m := newManager(sender, done, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, m.Begin(ctx, "A", "feed"))
	cancel()
	m.Wait()
	assert.Empty(t, done.all())
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want Answer
	}{
		{"yes", Confirm},
		{" Y ", Confirm},
		{"CONFIRM", Confirm},
		{"✅", Confirm},
		{"no", Deny},
		{"N", Deny},
		{"Cancel", Deny},
		{"❌", Deny},
		{"maybe", Unrecognized},
		{"", Unrecognized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAnswer(tt.in), "input %q", tt.in)
	}
}
