package websocket

import (
	"context"
	stderrors "errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

type echoRouter struct {
	mu        sync.Mutex
	connected []string
	reject    error
}

func (r *echoRouter) OnConnect(ctx context.Context, client domain.Client) error {
	r.mu.Lock()
	r.connected = append(r.connected, client.ID())
	r.mu.Unlock()
	if r.reject != nil {
		return r.reject
	}
	return client.Send(ctx, []byte("hello"))
}

func (r *echoRouter) Handle(ctx context.Context, client domain.Client, message []byte) error {
	return client.Send(ctx, message)
}

func startServer(t *testing.T, router MessageRouter) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(WithRouter(router)))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialConn(t *testing.T, url string) (*Conn, <-chan []byte, <-chan error) {
	t.Helper()

	ws, err := Dial(context.Background(), url, DefaultConnOptions())
	require.NoError(t, err)

	messages := make(chan []byte, 16)
	closed := make(chan error, 1)

	conn := NewConn("test", ws, nopLogger(), DefaultConnOptions())
	conn.Start(Handlers{
		OnMessage: func(m []byte) { messages <- m },
		OnClose:   func(err error) { closed <- err },
	})
	t.Cleanup(func() { conn.Close() })

	return conn, messages, closed
}

func next(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case m := <-ch:
		return string(m)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return ""
	}
}

func TestServerRoutesMessages(t *testing.T) {
	router := &echoRouter{}
	url := startServer(t, router)

	conn, messages, _ := dialConn(t, url)
	assert.Equal(t, "hello", next(t, messages))

	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, conn.Send(context.Background(), []byte(m)))
	}
	assert.Equal(t, "a", next(t, messages))
	assert.Equal(t, "b", next(t, messages))
	assert.Equal(t, "c", next(t, messages))

	router.mu.Lock()
	assert.Len(t, router.connected, 1)
	router.mu.Unlock()
}

func TestServerRejectsClient(t *testing.T) {
	url := startServer(t, &echoRouter{reject: stderrors.New("no")})

	_, _, closed := dialConn(t, url)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection stayed open")
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	url := startServer(t, &echoRouter{})
	conn, _, closed := dialConn(t, url)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.NoError(t, <-closed)
	assert.ErrorIs(t, conn.Send(context.Background(), []byte("x")), domain.ErrConnectionClosed)

	select {
	case <-conn.Context().Done():
	default:
		t.Fatal("context not cancelled")
	}
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1", DefaultConnOptions())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestSendWaitsForRoom(t *testing.T) {
	upgrader := gws.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(httpHandler(func(c *gws.Conn) {
		<-release
	}, upgrader))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ws, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), DefaultConnOptions())
	require.NoError(t, err)

	options := DefaultConnOptions()
	options.SendBufferSize = 1
	conn := NewConn("test", ws, nopLogger(), options)
	t.Cleanup(func() { conn.Close() })

	// Without the pumps running the queue never drains.
	require.NoError(t, conn.Send(context.Background(), []byte("1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = conn.Send(ctx, []byte("2"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}
