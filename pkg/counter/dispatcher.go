package counter

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/HMasataka/livecount/pkg/transport/protocol"
)

// Sender delivers encoded intents to the server
type Sender interface {
	Send(ctx context.Context, message []byte) error
	IsConnected() bool
}

// SnapshotReader answers existence checks against the snapshot
type SnapshotReader interface {
	Has(name domain.CounterName) bool
}

// Confirmer asks the user to approve a destructive action
type Confirmer interface {
	Confirm(name domain.CounterName) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(name domain.CounterName) bool

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(name domain.CounterName) bool {
	return f(name)
}

// Draft is the state of the new-counter form
type Draft struct {
	Name  domain.CounterName
	Value int64
}

// Dispatcher validates user actions and sends them as intents. It never
// touches the snapshot.
type Dispatcher struct {
	sender   Sender
	counters SnapshotReader
	codec    protocol.Codec
	logger   *logging.Logger
	errors   errors.Handler

	mu    sync.Mutex
	draft Draft
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherCodec sets the codec intents are encoded with
func WithDispatcherCodec(codec protocol.Codec) DispatcherOption {
	return func(d *Dispatcher) {
		d.codec = codec
	}
}

// WithDispatcherErrorHandler sets where rejections and send failures go
func WithDispatcherErrorHandler(handler errors.Handler) DispatcherOption {
	return func(d *Dispatcher) {
		d.errors = handler
	}
}

// NewDispatcher creates a dispatcher
func NewDispatcher(sender Sender, counters SnapshotReader, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Dispatcher{
		sender:   sender,
		counters: counters,
		codec:    protocol.NewJSONCodec(),
		logger:   logger,
		errors:   errors.NewDefaultHandler(logger.Logger),
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create asks the server to create name with initialValue. New names must
// contain something other than whitespace.
func (d *Dispatcher) Create(ctx context.Context, name domain.CounterName, initialValue int64) error {
	if domain.IsBlank(name) {
		return d.reject(ctx, domain.ErrEmptyName, "EMPTY_NAME", name)
	}
	if err := d.send(ctx, domain.CreateIntent(name, initialValue)); err != nil {
		return err
	}

	d.mu.Lock()
	d.draft = Draft{}
	d.mu.Unlock()
	return nil
}

// Increment asks the server to add one to name
func (d *Dispatcher) Increment(ctx context.Context, name domain.CounterName) error {
	if err := d.requireKnown(ctx, name); err != nil {
		return err
	}
	return d.send(ctx, domain.IncrementIntent(name))
}

// Decrement asks the server to subtract one from name
func (d *Dispatcher) Decrement(ctx context.Context, name domain.CounterName) error {
	if err := d.requireKnown(ctx, name); err != nil {
		return err
	}
	return d.send(ctx, domain.DecrementIntent(name))
}

// SetValue asks the server to overwrite name with value
func (d *Dispatcher) SetValue(ctx context.Context, name domain.CounterName, value int64) error {
	if name == "" {
		return d.reject(ctx, domain.ErrEmptyName, "EMPTY_NAME", name)
	}
	return d.send(ctx, domain.SetIntent(name, value))
}

// Delete asks the server to remove name once confirmer approves
func (d *Dispatcher) Delete(ctx context.Context, name domain.CounterName, confirmer Confirmer) error {
	if name == "" {
		return d.reject(ctx, domain.ErrEmptyName, "EMPTY_NAME", name)
	}
	if !d.sender.IsConnected() {
		return d.reject(ctx, domain.ErrNotConnected, "NOT_CONNECTED", name)
	}
	if confirmer == nil || !confirmer.Confirm(name) {
		return d.reject(ctx, domain.ErrNotConfirmed, "NOT_CONFIRMED", name)
	}
	return d.send(ctx, domain.DeleteIntent(name))
}

// SetDraft replaces the new-counter form
func (d *Dispatcher) SetDraft(name domain.CounterName, value int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = Draft{Name: name, Value: value}
}

// Draft returns the new-counter form
func (d *Dispatcher) Draft() Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// CreateDraft submits the new-counter form
func (d *Dispatcher) CreateDraft(ctx context.Context) error {
	draft := d.Draft()
	return d.Create(ctx, draft.Name, draft.Value)
}

func (d *Dispatcher) requireKnown(ctx context.Context, name domain.CounterName) error {
	if !d.sender.IsConnected() {
		return d.reject(ctx, domain.ErrNotConnected, "NOT_CONNECTED", name)
	}
	if !d.counters.Has(name) {
		return d.reject(ctx, domain.ErrUnknownCounter, "UNKNOWN_COUNTER", name)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, intent domain.Intent) error {
	if err := intent.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "INVALID_INTENT", "intent cannot be encoded")
	}
	if !d.sender.IsConnected() {
		return d.reject(ctx, domain.ErrNotConnected, "NOT_CONNECTED", intent.Name)
	}

	if err := d.sender.Send(ctx, d.codec.EncodeIntent(intent)); err != nil {
		d.errors.HandleWithLogger(ctx, err, d.logger.Logger)
		return err
	}

	d.logger.Debug("intent sent", "type", string(intent.Type), "counter", string(intent.Name))
	return nil
}

func (d *Dispatcher) reject(ctx context.Context, sentinel error, code string, name domain.CounterName) error {
	err := errors.Wrap(sentinel, errors.ErrorTypeValidation, code, sentinel.Error()).
		WithDetails(string(name))
	d.errors.HandleWithLogger(ctx, err, d.logger.Logger)
	return err
}
