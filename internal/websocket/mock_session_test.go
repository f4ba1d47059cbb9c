package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockSession implements Session for testing
type mockSession struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
}

func newMockSession(id string) *mockSession {
	return &mockSession{id: id}
}

func (m *mockSession) ID() string {
	return m.id
}

func (m *mockSession) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *mockSession) rawFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.frames))
	copy(result, m.frames)
	return result
}

// events returns the received envelopes named name, in arrival order.
func (m *mockSession) events(t *testing.T, name EventName) []Envelope {
	t.Helper()
	var out []Envelope
	for _, frame := range m.rawFrames() {
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func (m *mockSession) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type presenceCall struct {
	userID string
	online bool
}

type fakePresence struct {
	calls chan presenceCall
	// onlineDelay slows SetUserOnline down to mimic a lagging store.
	onlineDelay time.Duration
}

func newFakePresence() *fakePresence {
	return &fakePresence{calls: make(chan presenceCall, 16)}
}

func (p *fakePresence) SetUserOnline(_ context.Context, userID string) error {
	time.Sleep(p.onlineDelay)
	p.calls <- presenceCall{userID: userID, online: true}
	return nil
}

func (p *fakePresence) SetUserOffline(_ context.Context, userID string) error {
	p.calls <- presenceCall{userID: userID, online: false}
	return nil
}

func (p *fakePresence) next(t *testing.T) presenceCall {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence update")
		return presenceCall{}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedGenerator always picks from the given platforms with a seeded source.
func fixedGenerator(platforms ...string) *MetricGenerator {
	return NewMetricGenerator(rand.New(rand.NewPCG(7, 11)), platforms)
}

// startTestHub runs a hub whose ticker never fires during a test; ticks are
// driven explicitly through runOnHub.
func startTestHub(t *testing.T, opts Options, presence Presence, gen *MetricGenerator) *Hub {
	t.Helper()
	opts.TickInterval = time.Hour
	hub := NewHub(opts, presence, gen, testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// runOnHub executes fn on the hub goroutine and waits for it to finish.
func runOnHub(t *testing.T, hub *Hub, fn func()) {
	t.Helper()
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, send(ctx, hub, hub.queries, func() {
		fn()
		close(done)
	}))
	<-done
}

// settle waits until every request handed to the hub so far is processed.
func settle(t *testing.T, hub *Hub) {
	t.Helper()
	runOnHub(t, hub, func() {})
}

func attach(t *testing.T, hub *Hub, id string) *mockSession {
	t.Helper()
	s := newMockSession(id)
	require.NoError(t, hub.Attach(context.Background(), s))
	return s
}

func dispatch(t *testing.T, hub *Hub, id string, event EventName, data any) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	require.NoError(t, hub.Dispatch(context.Background(), id, Envelope{Event: event, Data: raw}))
}

func registerUser(t *testing.T, hub *Hub, id, userID string) {
	t.Helper()
	dispatch(t, hub, id, EventUserConnect, UserConnectData{UserID: userID, Email: userID + "@example.com"})
}
