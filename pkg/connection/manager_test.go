package connection

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/pkg/domain"
)

type call struct {
	kind    string
	message string
	state   domain.ConnectionState
	err     error
}

type recorder struct {
	mu       sync.Mutex
	calls    []call
	notify   chan call
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan call, 64)}
}

func (r *recorder) record(c call) {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)

	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	r.notify <- c
}

func (r *recorder) OnOpen()            { r.record(call{kind: "open"}) }
func (r *recorder) OnMessage(m []byte) { r.record(call{kind: "message", message: string(m)}) }
func (r *recorder) OnClose(s domain.ConnectionState, err error) {
	r.record(call{kind: "close", state: s, err: err})
}

func (r *recorder) wait(t *testing.T, kind string) call {
	t.Helper()
	for {
		select {
		case c := <-r.notify:
			if c.kind == kind {
				return c
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.kind)
	}
	return out
}

// peerServer accepts websockets and hands them to the test.
func peerServer(t *testing.T) (string, <-chan *gws.Conn) {
	t.Helper()

	conns := make(chan *gws.Conn, 4)
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func accept(t *testing.T, conns <-chan *gws.Conn) *gws.Conn {
	t.Helper()
	select {
	case c := <-conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	m := New(newRecorder())

	err := m.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, domain.ErrNotConnected))
	assert.False(t, m.IsConnected())
	assert.Equal(t, domain.StateDisconnected, m.State())
}

func TestCloseNeverOpened(t *testing.T) {
	m := New(newRecorder())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, domain.StateDisconnected, m.State())
}

func TestConnectDeliversInOrder(t *testing.T) {
	url, conns := peerServer(t)
	rec := newRecorder()
	m := New(rec)

	require.NoError(t, m.Connect(context.Background(), url))
	peer := accept(t, conns)
	assert.True(t, m.IsConnected())

	for _, msg := range []string{"1", "2", "3"} {
		require.NoError(t, peer.WriteMessage(gws.TextMessage, []byte(msg)))
	}

	var got []string
	for range 3 {
		got = append(got, rec.wait(t, "message").message)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, "open", rec.kinds()[0])

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	c := rec.wait(t, "close")
	assert.Equal(t, domain.StateDisconnected, c.state)
	assert.NoError(t, c.err)
	assert.False(t, rec.overlap.Load())

	kinds := rec.kinds()
	assert.Equal(t, "close", kinds[len(kinds)-1])
}

func TestSecondConnectRejected(t *testing.T) {
	url, conns := peerServer(t)
	m := New(newRecorder())
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(context.Background(), url))
	accept(t, conns)

	err := m.Connect(context.Background(), url)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, domain.ErrAlreadyConnected))
}

func TestSendReachesPeer(t *testing.T) {
	url, conns := peerServer(t)
	m := New(newRecorder())
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(context.Background(), url))
	peer := accept(t, conns)

	require.NoError(t, m.Send(context.Background(), []byte(`{"type":"increment","counter":"a"}`)))

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"increment","counter":"a"}`, string(data))
}

func TestPeerNormalCloseDisconnects(t *testing.T) {
	url, conns := peerServer(t)
	rec := newRecorder()
	m := New(rec)

	require.NoError(t, m.Connect(context.Background(), url))
	peer := accept(t, conns)

	msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
	require.NoError(t, peer.WriteControl(gws.CloseMessage, msg, time.Now().Add(time.Second)))

	c := rec.wait(t, "close")
	assert.Equal(t, domain.StateDisconnected, c.state)
	assert.NoError(t, c.err)
	assert.Equal(t, domain.StateDisconnected, m.State())

	err := m.Send(context.Background(), []byte("x"))
	assert.True(t, stderrors.Is(err, domain.ErrNotConnected))
}

func TestPeerDropErrors(t *testing.T) {
	url, conns := peerServer(t)
	rec := newRecorder()
	m := New(rec)

	require.NoError(t, m.Connect(context.Background(), url))
	peer := accept(t, conns)
	peer.UnderlyingConn().Close()

	c := rec.wait(t, "close")
	assert.Equal(t, domain.StateErrored, c.state)
	assert.Error(t, c.err)
	assert.Equal(t, domain.StateErrored, m.State())

	// A new attempt is allowed after an error.
	require.NoError(t, m.Connect(context.Background(), url))
	accept(t, conns)
	rec.wait(t, "open")
	require.NoError(t, m.Close())
}

func TestDialFailure(t *testing.T) {
	m := New(newRecorder())

	err := m.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	require.Error(t, err)
	assert.Equal(t, domain.StateErrored, m.State())
	require.NoError(t, m.Close())
}

func TestCloseCancelsDial(t *testing.T) {
	// The handshake never gets a response.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	rec := newRecorder()
	m := New(rec)

	done := make(chan error, 1)
	go func() {
		done <- m.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	}()

	require.Eventually(t, func() bool {
		return m.State() == domain.StateConnecting
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("dial kept running after Close")
	}

	assert.Equal(t, domain.StateDisconnected, m.State())
	assert.Empty(t, rec.kinds())
}

func TestStateChangesPublished(t *testing.T) {
	url, conns := peerServer(t)
	bus := eventbus.NewInMemoryBus(8)

	var mu sync.Mutex
	var changes []domain.StateChange
	bus.Subscribe(eventbus.EventStateChanged, func(e *eventbus.Event) {
		mu.Lock()
		changes = append(changes, e.Data.(domain.StateChange))
		mu.Unlock()
	})

	m := New(newRecorder(), WithEventBus(bus))
	require.NoError(t, m.Connect(context.Background(), url))
	accept(t, conns)
	require.NoError(t, m.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, domain.StateConnecting, changes[0].New)
	assert.Equal(t, domain.StateConnected, changes[1].New)
	assert.Equal(t, domain.StateDisconnected, changes[2].New)
}
