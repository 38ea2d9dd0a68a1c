package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HMasataka/livecount/pkg/counter"
	"github.com/HMasataka/livecount/pkg/domain"
)

type fakeClient struct {
	calls    []string
	snapshot domain.Snapshot
	session  *counter.EditSession
}

func (f *fakeClient) record(format string, args ...any) error {
	f.calls = append(f.calls, strings.TrimSpace(fmt.Sprintf(format, args...)))
	return nil
}

func (f *fakeClient) IsConnected() bool         { return true }
func (f *fakeClient) Snapshot() domain.Snapshot { return f.snapshot.Clone() }

func (f *fakeClient) Create(ctx context.Context, name domain.CounterName, v int64) error {
	return f.record("create %s %d", name, v)
}

func (f *fakeClient) Increment(ctx context.Context, name domain.CounterName) error {
	return f.record("inc %s", name)
}

func (f *fakeClient) Decrement(ctx context.Context, name domain.CounterName) error {
	return f.record("dec %s", name)
}

func (f *fakeClient) SetValue(ctx context.Context, name domain.CounterName, v int64) error {
	return f.record("set %s %d", name, v)
}

func (f *fakeClient) Delete(ctx context.Context, name domain.CounterName, c counter.Confirmer) error {
	if !c.Confirm(name) {
		return domain.ErrNotConfirmed
	}
	return f.record("del %s", name)
}

func (f *fakeClient) BeginEdit(name domain.CounterName) error {
	f.session = &counter.EditSession{Name: name, Pending: f.snapshot[name]}
	return nil
}

func (f *fakeClient) UpdateEdit(v int64) {
	if f.session != nil {
		f.session.Pending = v
	}
}

func (f *fakeClient) CommitEdit(ctx context.Context) error {
	if f.session == nil {
		return domain.ErrNoEditSession
	}
	s := *f.session
	f.session = nil
	return f.record("set %s %d", s.Name, s.Pending)
}

func (f *fakeClient) CancelEdit() { f.session = nil }

func (f *fakeClient) EditSession() (counter.EditSession, bool) {
	if f.session == nil {
		return counter.EditSession{}, false
	}
	return *f.session, true
}

func runShell(t *testing.T, client *fakeClient, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, newShell(client, strings.NewReader(input), &out).run(context.Background()))
	return out.String()
}

func TestShellCommands(t *testing.T) {
	client := &fakeClient{snapshot: domain.Snapshot{"a": 1}}

	runShell(t, client, strings.Join([]string{
		"create visits",
		"create b 4",
		"inc a",
		"dec a",
		"set a 9",
		"edit a",
		"value 12",
		"commit",
		"edit a",
		"cancel",
		"del a",
		"y",
		"del a",
		"n",
		"quit",
		"inc never-run",
	}, "\n"))

	assert.Equal(t, []string{
		"create visits 0",
		"create b 4",
		"inc a",
		"dec a",
		"set a 9",
		"set a 12",
		"del a",
	}, client.calls)
}

func TestShellErrors(t *testing.T) {
	client := &fakeClient{}
	sh := newShell(client, strings.NewReader(""), &bytes.Buffer{})
	ctx := context.Background()

	_, err := sh.execute(ctx, "set a x")
	assert.EqualError(t, err, `"x" is not an integer`)

	_, err = sh.execute(ctx, "inc")
	assert.EqualError(t, err, "usage: inc NAME")

	_, err = sh.execute(ctx, "frobnicate")
	assert.Error(t, err)

	_, err = sh.execute(ctx, "commit")
	assert.True(t, stderrors.Is(err, domain.ErrNoEditSession))

	// No input left to answer the confirmation.
	_, err = sh.execute(ctx, "del a")
	assert.True(t, stderrors.Is(err, domain.ErrNotConfirmed))
	assert.Empty(t, client.calls)
}

func TestShellList(t *testing.T) {
	out := runShell(t, &fakeClient{snapshot: domain.Snapshot{"b": 2, "a": 1}}, "list\n")
	assert.Contains(t, out, "a\t1\nb\t2\n")

	out = runShell(t, &fakeClient{}, "list\n")
	assert.Contains(t, out, "(no counters)")
}

func TestShellPromptShowsEdit(t *testing.T) {
	client := &fakeClient{snapshot: domain.Snapshot{"a": 1}}
	out := runShell(t, client, "edit a\nvalue 5\n")
	assert.Contains(t, out, "(editing a=5)> ")
}
