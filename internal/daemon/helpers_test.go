package daemon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tessro/dbxlink/internal/loop"
	"github.com/tessro/dbxlink/internal/wire"
)

const waitTimeout = 3 * time.Second

// socketDir returns a short temp dir; t.TempDir paths can exceed the
// sun_path limit on some systems.
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dbx")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func testOptions(dir string) Options {
	return Options{
		CommandSocket:  filepath.Join(dir, "cmd"),
		HookSocket:     filepath.Join(dir, "hook"),
		ConnectTimeout: time.Second,
		RetryDelay:     20 * time.Millisecond,
		IOTimeout:      time.Second,
		IdlePoll:       10 * time.Millisecond,
		VerifyPeer:     true,
	}
}

// rawDaemon accepts connections and hands them to the test, which then
// speaks the protocol by hand.
type rawDaemon struct {
	ln    net.Listener
	conns chan net.Conn
}

func newRawDaemon(t *testing.T, path string) *rawDaemon {
	t.Helper()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &rawDaemon{ln: ln, conns: make(chan net.Conn, 8)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			d.conns <- conn
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		for {
			select {
			case c := <-d.conns:
				c.Close()
			default:
				return
			}
		}
	})
	return d
}

func (d *rawDaemon) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-d.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("no connection from client")
		return nil
	}
}

// readRequest reads one request the way the daemon would.
func readRequest(t *testing.T, r *bufio.Reader) (string, *wire.Args) {
	t.Helper()
	name, err := wire.ReadLine(r)
	if err != nil {
		t.Fatalf("read request name: %v", err)
	}
	args := wire.NewArgs()
	for {
		line, err := wire.ReadLine(r)
		if err != nil {
			t.Fatalf("read request args: %v", err)
		}
		if line == wire.Done {
			return wire.Desanitize(name), args
		}
		key, values, err := wire.ParseArgLine(line)
		if err != nil {
			t.Fatalf("parse request arg: %v", err)
		}
		args.Set(key, values...)
	}
}

// argLines renders n distinct argument lines.
func argLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "k%d\tv%d\n", i, i)
	}
	return b.String()
}

func collectEvents(register func(func(ChannelEvent)) func()) chan ChannelEvent {
	events := make(chan ChannelEvent, 1024)
	register(func(ev ChannelEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	return events
}

func waitEvent(t *testing.T, events <-chan ChannelEvent, kind EventKind) ChannelEvent {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return ChannelEvent{}
		}
	}
}

func startCommandChannel(t *testing.T, opts Options) (*CommandChannel, chan ChannelEvent) {
	t.Helper()
	ch := NewCommandChannel(opts)
	events := collectEvents(ch.OnEvent)
	ctx, cancel := context.WithCancel(context.Background())
	ch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-ch.Done()
	})
	return ch, events
}

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

type callResult struct {
	args *wire.Args
	err  error
}

func callInto(ch chan<- callResult) func(*wire.Args, error) {
	return func(args *wire.Args, err error) {
		ch <- callResult{args, err}
	}
}

func waitResult(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("command never completed")
		return callResult{}
	}
}
