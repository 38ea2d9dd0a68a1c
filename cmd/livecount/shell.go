package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/HMasataka/livecount/pkg/counter"
	"github.com/HMasataka/livecount/pkg/domain"
)

const shellHelp = `commands:
  create NAME [VALUE]  create a counter
  inc NAME             add one
  dec NAME             subtract one
  set NAME VALUE       overwrite a value
  edit NAME            start editing NAME
  value N              change the pending edit value
  commit               send the pending edit value
  cancel               discard the edit
  del NAME             delete after confirmation
  list                 show all counters
  quit                 leave`

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive counter client",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			client := counter.NewClient(
				counter.WithLogger(logger),
				counter.WithConnOptions(cfg.Client.ConnOptions()),
			)
			if err := client.Connect(c.Context, cfg.Client.URL); err != nil {
				return cli.Exit(err, 1)
			}
			defer client.Close()

			sh := newShell(client, c.App.Reader, c.App.Writer)
			return sh.run(c.Context)
		},
	}
}

// shellClient is the part of counter.Client the shell drives.
type shellClient interface {
	IsConnected() bool
	Snapshot() domain.Snapshot
	Create(ctx context.Context, name domain.CounterName, initialValue int64) error
	Increment(ctx context.Context, name domain.CounterName) error
	Decrement(ctx context.Context, name domain.CounterName) error
	SetValue(ctx context.Context, name domain.CounterName, value int64) error
	Delete(ctx context.Context, name domain.CounterName, confirmer counter.Confirmer) error
	BeginEdit(name domain.CounterName) error
	UpdateEdit(value int64)
	CommitEdit(ctx context.Context) error
	CancelEdit()
	EditSession() (counter.EditSession, bool)
}

type shell struct {
	client shellClient
	in     *bufio.Scanner
	out    io.Writer
}

func newShell(client shellClient, in io.Reader, out io.Writer) *shell {
	return &shell{
		client: client,
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

func (s *shell) run(ctx context.Context) error {
	fmt.Fprintln(s.out, `connected; type "help" for commands`)

	for {
		fmt.Fprint(s.out, s.prompt())
		if !s.in.Scan() {
			return s.in.Err()
		}

		quit, err := s.execute(ctx, s.in.Text())
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *shell) prompt() string {
	if !s.client.IsConnected() {
		return "(offline)> "
	}
	if session, ok := s.client.EditSession(); ok {
		return fmt.Sprintf("(editing %s=%d)> ", session.Name, session.Pending)
	}
	return "> "
}

// execute runs one command line and reports whether the shell should exit.
func (s *shell) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return false, nil

	case "list":
		s.list()
		return false, nil

	case "create":
		if len(args) < 1 || len(args) > 2 {
			return false, usage("create NAME [VALUE]")
		}
		var value int64
		if len(args) == 2 {
			v, err := parseValue(args[1])
			if err != nil {
				return false, err
			}
			value = v
		}
		return false, s.client.Create(ctx, domain.CounterName(args[0]), value)

	case "inc", "dec":
		if len(args) != 1 {
			return false, usage(cmd + " NAME")
		}
		if cmd == "inc" {
			return false, s.client.Increment(ctx, domain.CounterName(args[0]))
		}
		return false, s.client.Decrement(ctx, domain.CounterName(args[0]))

	case "set":
		if len(args) != 2 {
			return false, usage("set NAME VALUE")
		}
		value, err := parseValue(args[1])
		if err != nil {
			return false, err
		}
		return false, s.client.SetValue(ctx, domain.CounterName(args[0]), value)

	case "edit":
		if len(args) != 1 {
			return false, usage("edit NAME")
		}
		return false, s.client.BeginEdit(domain.CounterName(args[0]))

	case "value":
		if len(args) != 1 {
			return false, usage("value N")
		}
		value, err := parseValue(args[0])
		if err != nil {
			return false, err
		}
		s.client.UpdateEdit(value)
		return false, nil

	case "commit":
		return false, s.client.CommitEdit(ctx)

	case "cancel":
		s.client.CancelEdit()
		return false, nil

	case "del":
		if len(args) != 1 {
			return false, usage("del NAME")
		}
		return false, s.client.Delete(ctx, domain.CounterName(args[0]), counter.ConfirmFunc(s.confirm))

	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

// confirm asks on the shell's own input so it works when input is piped.
func (s *shell) confirm(name domain.CounterName) bool {
	fmt.Fprintf(s.out, "delete %s? [y/N] ", name)
	if !s.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return answer == "y" || answer == "yes"
}

func (s *shell) list() {
	snapshot := s.client.Snapshot()
	if len(snapshot) == 0 {
		fmt.Fprintln(s.out, "(no counters)")
		return
	}
	for _, name := range snapshot.Names() {
		fmt.Fprintf(s.out, "%s\t%d\n", name, snapshot[name])
	}
}

func parseValue(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return v, nil
}

func usage(form string) error {
	return fmt.Errorf("usage: %s", form)
}
