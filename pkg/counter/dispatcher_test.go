package counter

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/HMasataka/livecount/pkg/transport/protocol"
)

type fakeSender struct {
	connected bool
	sent      []string
	err       error
}

func (s *fakeSender) Send(ctx context.Context, message []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, string(message))
	return nil
}

func (s *fakeSender) IsConnected() bool {
	return s.connected
}

func newTestDispatcher(connected bool, counters ...domain.CounterName) (*Dispatcher, *fakeSender, *Engine) {
	engine := NewEngine(nil)
	for _, name := range counters {
		engine.Apply(domain.CounterUpdated{Name: name, Value: 0})
	}
	sender := &fakeSender{connected: connected}
	return NewDispatcher(sender, engine, nil), sender, engine
}

func assertRejected(t *testing.T, err error, sentinel error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, sentinel), "got %v", err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestCreate(t *testing.T) {
	d, sender, engine := newTestDispatcher(true)
	d.SetDraft("clicks", 3)

	require.NoError(t, d.Create(context.Background(), "clicks", 0))

	require.Len(t, sender.sent, 1)
	assert.JSONEq(t, `{"type":"create","counter":"clicks","value":0}`, sender.sent[0])
	assert.Equal(t, Draft{}, d.Draft())
	assert.Empty(t, engine.Snapshot())
}

func TestCreateRejections(t *testing.T) {
	d, sender, _ := newTestDispatcher(true)
	for _, name := range []domain.CounterName{"", "   ", "\t\n"} {
		assertRejected(t, d.Create(context.Background(), name, 1), domain.ErrEmptyName)
	}

	offline, offlineSender, _ := newTestDispatcher(false)
	offline.SetDraft("keep", 1)
	assertRejected(t, offline.Create(context.Background(), "x", 1), domain.ErrNotConnected)
	assert.Equal(t, Draft{Name: "keep", Value: 1}, offline.Draft())

	assert.Empty(t, sender.sent)
	assert.Empty(t, offlineSender.sent)
}

func TestCreateDraft(t *testing.T) {
	d, sender, _ := newTestDispatcher(true)
	d.SetDraft("visits", 10)

	require.NoError(t, d.CreateDraft(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.JSONEq(t, `{"type":"create","counter":"visits","value":10}`, sender.sent[0])
	assert.Equal(t, Draft{}, d.Draft())
}

func TestIncrementDecrementDoNotMutate(t *testing.T) {
	d, sender, engine := newTestDispatcher(true, "clicks")

	require.NoError(t, d.Increment(context.Background(), "clicks"))
	require.NoError(t, d.Decrement(context.Background(), "clicks"))

	assert.Equal(t, []string{
		`{"type":"increment","counter":"clicks"}`,
		`{"type":"decrement","counter":"clicks"}`,
	}, sender.sent)
	assert.Equal(t, domain.Snapshot{"clicks": 0}, engine.Snapshot())
}

func TestIncrementRejections(t *testing.T) {
	d, sender, _ := newTestDispatcher(true, "clicks")
	assertRejected(t, d.Increment(context.Background(), "missing"), domain.ErrUnknownCounter)
	assertRejected(t, d.Decrement(context.Background(), "missing"), domain.ErrUnknownCounter)
	assert.Empty(t, sender.sent)

	offline, _, _ := newTestDispatcher(false, "clicks")
	assertRejected(t, offline.Increment(context.Background(), "clicks"), domain.ErrNotConnected)
}

func TestSetValue(t *testing.T) {
	d, sender, engine := newTestDispatcher(true, "a")

	require.NoError(t, d.SetValue(context.Background(), "a", 4))
	assert.Equal(t, []string{`{"type":"set","counter":"a","value":4}`}, sender.sent)
	assert.Equal(t, domain.Snapshot{"a": 0}, engine.Snapshot())

	assertRejected(t, d.SetValue(context.Background(), "", 4), domain.ErrEmptyName)
}

func TestWhitespaceNameIsOpaque(t *testing.T) {
	d, sender, engine := newTestDispatcher(true)
	engine.Apply(domain.CounterUpdated{Name: " ", Value: 1})
	yes := ConfirmFunc(func(domain.CounterName) bool { return true })

	require.NoError(t, d.Increment(context.Background(), " "))
	require.NoError(t, d.Decrement(context.Background(), " "))
	require.NoError(t, d.SetValue(context.Background(), " ", 7))
	require.NoError(t, d.Delete(context.Background(), " ", yes))

	assert.Equal(t, []string{
		`{"type":"increment","counter":" "}`,
		`{"type":"decrement","counter":" "}`,
		`{"type":"set","counter":" ","value":7}`,
		`{"type":"delete","counter":" "}`,
	}, sender.sent)

	assertRejected(t, d.Create(context.Background(), " ", 1), domain.ErrEmptyName)
}

func TestDispatcherOptions(t *testing.T) {
	handler := &recordingHandler{}
	d := NewDispatcher(&fakeSender{connected: true}, NewEngine(nil), nil,
		WithDispatcherCodec(protocol.NewJSONCodec()),
		WithDispatcherErrorHandler(handler),
	)

	assertRejected(t, d.Increment(context.Background(), "missing"), domain.ErrUnknownCounter)
	require.Len(t, handler.errs, 1)
	assert.True(t, stderrors.Is(handler.errs[0], domain.ErrUnknownCounter))
}

func TestSetValueOffline(t *testing.T) {
	d, _, _ := newTestDispatcher(false, "a")
	assertRejected(t, d.SetValue(context.Background(), "a", 1), domain.ErrNotConnected)
}

func TestDelete(t *testing.T) {
	d, sender, engine := newTestDispatcher(true, "clicks")

	var asked domain.CounterName
	yes := ConfirmFunc(func(name domain.CounterName) bool {
		asked = name
		return true
	})

	require.NoError(t, d.Delete(context.Background(), "clicks", yes))
	assert.Equal(t, domain.CounterName("clicks"), asked)
	assert.Equal(t, []string{`{"type":"delete","counter":"clicks"}`}, sender.sent)
	assert.True(t, engine.Has("clicks"))
}

func TestDeleteRejections(t *testing.T) {
	d, sender, _ := newTestDispatcher(true, "clicks")
	no := ConfirmFunc(func(domain.CounterName) bool { return false })

	assertRejected(t, d.Delete(context.Background(), "clicks", no), domain.ErrNotConfirmed)
	assertRejected(t, d.Delete(context.Background(), "clicks", nil), domain.ErrNotConfirmed)
	assert.Empty(t, sender.sent)

	offline, _, _ := newTestDispatcher(false, "clicks")
	asked := false
	yes := ConfirmFunc(func(domain.CounterName) bool {
		asked = true
		return true
	})
	assertRejected(t, offline.Delete(context.Background(), "clicks", yes), domain.ErrNotConnected)
	assert.False(t, asked)
}

func TestSendFailureSurfaces(t *testing.T) {
	d, sender, _ := newTestDispatcher(true, "clicks")
	sender.err = errors.New(errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full")

	err := d.Increment(context.Background(), "clicks")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}
