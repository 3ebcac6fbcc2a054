// Package fixture loads canned daemon behaviour for the fake daemon: command
// responses keyed by request name and a schedule of hook notifications.
package fixture

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/wire"
)

//go:embed default.yaml
var defaultFixture []byte

// ErrInvalid is returned for a fixture that parses but cannot be served.
var ErrInvalid = errors.New("invalid fixture")

// Response is one canned answer to a command. When, if set, must match the
// first value of each named request argument. Error, if set, is sent as the
// response status instead of "ok".
type Response struct {
	When  map[string]string   `yaml:"when,omitempty"`
	Args  map[string][]string `yaml:"args,omitempty"`
	Error string              `yaml:"error,omitempty"`
}

// Notification is a hook notification sent After the clients connect, and
// then repeated Every interval if set.
type Notification struct {
	After time.Duration       `yaml:"after"`
	Every time.Duration       `yaml:"every,omitempty"`
	Name  string              `yaml:"name"`
	Args  map[string][]string `yaml:"args,omitempty"`
}

// Fixture is the parsed form of a fixture file.
type Fixture struct {
	Commands      map[string][]Response `yaml:"commands"`
	Notifications []Notification        `yaml:"notifications,omitempty"`
}

// Default returns the built-in fixture.
func Default() *Fixture {
	f, err := Parse(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("built-in fixture: %v", err))
	}
	return f
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates fixture YAML.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	for name, responses := range f.Commands {
		if name == "" {
			return fmt.Errorf("%w: empty command name", ErrInvalid)
		}
		for i, r := range responses {
			if r.Error == wire.StatusOK {
				return fmt.Errorf("%w: commands.%s[%d]: error must not be %q", ErrInvalid, name, i, wire.StatusOK)
			}
			if err := checkArgs(r.Args); err != nil {
				return fmt.Errorf("%w: commands.%s[%d]: %v", ErrInvalid, name, i, err)
			}
		}
	}
	for i, n := range f.Notifications {
		if n.Name == "" {
			return fmt.Errorf("%w: notifications[%d]: missing name", ErrInvalid, i)
		}
		if n.After < 0 || n.Every < 0 {
			return fmt.Errorf("%w: notifications[%d]: negative interval", ErrInvalid, i)
		}
		if err := checkArgs(n.Args); err != nil {
			return fmt.Errorf("%w: notifications[%d]: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

func checkArgs(args map[string][]string) error {
	if len(args) >= wire.MaxArgs {
		return fmt.Errorf("%d arguments, limit is %d", len(args), wire.MaxArgs-1)
	}
	for k, vs := range args {
		if len(vs) == 0 {
			return fmt.Errorf("argument %q has no values", k)
		}
	}
	return nil
}

// Handle implements daemon.Handler. The first response whose When clause
// matches the request is used; a command with no matching response fails.
func (f *Fixture) Handle(_ context.Context, req *daemon.Request) (*wire.Args, error) {
	for _, r := range f.Commands[req.Name] {
		if !r.matches(req.Args) {
			continue
		}
		if r.Error != "" {
			return nil, &wire.RemoteError{Status: r.Error}
		}
		return wire.ArgsFromMap(r.Args), nil
	}
	return nil, fmt.Errorf("no fixture response for %q", req.Name)
}

func (r Response) matches(args *wire.Args) bool {
	for k, want := range r.When {
		if args.First(k) != want {
			return false
		}
	}
	return true
}

// Notifier sends one notification and reports how many clients got it.
type Notifier interface {
	Notify(name string, args *wire.Args) int
}

// Play sends the fixture's notifications on schedule until ctx is done. One
// goroutine runs per notification.
func (f *Fixture) Play(ctx context.Context, n Notifier) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, note := range f.Notifications {
		g.Go(func() error {
			return play(ctx, n, note)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func play(ctx context.Context, n Notifier, note Notification) error {
	args := wire.ArgsFromMap(note.Args)
	timer := time.NewTimer(note.After)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		sent := n.Notify(note.Name, args)
		slog.Debug("fixture notification", "name", note.Name, "clients", sent)
		if note.Every <= 0 {
			return nil
		}
		timer.Reset(note.Every)
	}
}
