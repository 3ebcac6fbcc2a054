package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/overlay"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print link changes and daemon notifications",
	Long: "Keep a link to the daemon open and print every connect, disconnect and\n" +
		"notification until interrupted. The link reconnects on its own.",
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// watchLine is one printed event.
type watchLine struct {
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	Channel string    `json:"channel,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Path    string    `json:"path,omitempty"`
	URL     string    `json:"url,omitempty"`
	Paths   []string  `json:"paths,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func linkLine(ev daemon.LinkEvent) watchLine {
	l := watchLine{Time: time.Now(), Event: ev.Kind.String(), Channel: ev.Channel, Attempt: ev.Attempt}
	if ev.Err != nil {
		l.Error = ev.Err.Error()
	}
	return l
}

func overlayLine(ev overlay.Event) watchLine {
	return watchLine{Time: time.Now(), Event: ev.Kind.String(), Path: ev.Path, URL: ev.URL, Paths: ev.Paths}
}

func (l watchLine) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", l.Time.Format("15:04:05"), l.Event)
	if l.Channel != "" {
		fmt.Fprintf(&b, " [%s]", l.Channel)
	}
	if l.Attempt > 0 {
		fmt.Fprintf(&b, " attempt=%d", l.Attempt)
	}
	for _, s := range []string{l.Path, l.URL, strings.Join(l.Paths, " ")} {
		if s != "" {
			b.WriteString(" " + s)
		}
	}
	if l.Error != "" {
		fmt.Fprintf(&b, " (%s)", l.Error)
	}
	return b.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newSession()
	lines := make(chan watchLine, 64)
	push := func(l watchLine) {
		// Handlers run on the link's loop and must not block it.
		select {
		case lines <- l:
		default:
			slog.Warn("watch output behind, dropping event", "event", l.Event)
		}
	}
	s.client.OnEvent(func(ev daemon.LinkEvent) { push(linkLine(ev)) })
	s.overlay.OnEvent(func(ev overlay.Event) {
		// The link events already cover these.
		if ev.Kind == overlay.EventLinked || ev.Kind == overlay.EventUnlinked {
			return
		}
		push(overlayLine(ev))
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(cmd.ErrOrStderr(), "📦 Watching the Dropbox daemon (Ctrl+C to stop)")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.client.Run(ctx)
	})
	g.Go(func() error {
		enc := json.NewEncoder(out)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case l := <-lines:
				if watchJSON {
					if err := enc.Encode(l); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintln(out, l.String()); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print one JSON object per event")
	rootCmd.AddCommand(watchCmd)
}
