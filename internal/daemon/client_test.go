package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/tessro/dbxlink/internal/wire"
)

type countingReconnecter struct {
	calls int
}

func (r *countingReconnecter) ForceReconnect() { r.calls++ }

func TestClient_Observe(t *testing.T) {
	cmd := &countingReconnecter{}
	hook := &countingReconnecter{}
	c := &Client{}
	c.partners[SideCommand] = cmd
	c.partners[SideHook] = hook

	var got []EventKind
	c.OnEvent(func(ev LinkEvent) { got = append(got, ev.Kind) })

	c.observe(SideCommand, ChannelEvent{Kind: EventConnected})
	if len(got) != 0 {
		t.Fatalf("unified event after one side: %v", got)
	}
	c.observe(SideHook, ChannelEvent{Kind: EventConnected})
	if len(got) != 1 || got[0] != EventConnected {
		t.Fatalf("events = %v, want [connected]", got)
	}

	// Command drops alone: the hook is forced down exactly once before the
	// unified disconnect.
	c.observe(SideCommand, ChannelEvent{Kind: EventDisconnected})
	if hook.calls != 1 || cmd.calls != 0 {
		t.Errorf("reconnects: hook=%d command=%d, want 1 and 0", hook.calls, cmd.calls)
	}
	if len(got) != 1 {
		t.Errorf("unified disconnect fired while hook still up: %v", got)
	}
	c.observe(SideHook, ChannelEvent{Kind: EventDisconnected})
	if hook.calls != 1 {
		t.Errorf("hook forced %d times, want 1", hook.calls)
	}
	if len(got) != 2 || got[1] != EventDisconnected {
		t.Errorf("events = %v, want [connected disconnected]", got)
	}

	c.observe(SideHook, ChannelEvent{Kind: EventConnectionAttempt, Channel: ChannelHook, Attempt: 3})
	if len(got) != 3 || got[2] != EventConnectionAttempt {
		t.Errorf("attempt not forwarded: %v", got)
	}
	if c.LinkState() != BothDown {
		t.Errorf("LinkState() = %s", c.LinkState())
	}
}

func startFakeDaemon(t *testing.T, opts Options, h Handler) *Server {
	t.Helper()
	srv := NewServer(opts.CommandSocket, opts.HookSocket, h)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func startClient(t *testing.T, c *Client) chan LinkEvent {
	t.Helper()
	events := make(chan LinkEvent, 256)
	c.OnEvent(func(ev LinkEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return events
}

func waitLink(t *testing.T, events <-chan LinkEvent, kind EventKind) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for link %s", kind)
		}
	}
}

// waitClients blocks until the fake daemon has accepted both of the
// client's sockets. A dial completes before the server tracks the conn.
func waitClients(t *testing.T, srv *Server) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for srv.HookClients() == 0 || srv.CommandClients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("fake daemon saw %d hook and %d command clients", srv.HookClients(), srv.CommandClients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_EmblemPaths(t *testing.T) {
	opts := testOptions(socketDir(t))
	startFakeDaemon(t, opts, HandlerFunc(func(ctx context.Context, req *Request) (*wire.Args, error) {
		if req.Name != CmdEmblemPaths {
			return nil, &wire.RemoteError{Status: StatusNotOK}
		}
		return wire.NewArgs().Set("path", "/a", "/b"), nil
	}))

	c := NewClient(opts)
	events := startClient(t, c)
	waitLink(t, events, EventConnected)
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after unified connect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	res, err := c.Call(ctx, CmdEmblemPaths, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := wire.ArgsFromMap(map[string][]string{"path": {"/a", "/b"}})
	if !res.Equal(want) {
		t.Errorf("Call() = %v, want %v", res.Map(), want.Map())
	}
}

func TestClient_ShellTouchSplitAcrossWrites(t *testing.T) {
	opts := testOptions(socketDir(t))
	srv := startFakeDaemon(t, opts, nil)

	c := NewClient(opts)
	touched := make(chan *wire.Args, 4)
	c.Register(HookShellTouch, func(args *wire.Args) { touched <- args })
	events := startClient(t, c)
	waitLink(t, events, EventConnected)
	waitClients(t, srv)

	srv.Broadcast([]byte("shell_touch\npath\t/home/x/"))
	time.Sleep(20 * time.Millisecond)
	srv.Broadcast([]byte("f.txt\ndone\n"))

	select {
	case args := <-touched:
		if got := args.Get("path"); len(got) != 1 || got[0] != "/home/x/f.txt" {
			t.Errorf("path = %v", got)
		}
	case <-time.After(waitTimeout):
		t.Fatal("shell_touch never dispatched")
	}
	select {
	case <-touched:
		t.Error("shell_touch dispatched twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_AsymmetricDrop(t *testing.T) {
	tests := []struct {
		name string
		drop func(*Server)
	}{
		{"hook drops", (*Server).DropHookClients},
		{"command drops", (*Server).DropCommandClients},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(socketDir(t))
			srv := startFakeDaemon(t, opts, nil)

			c := NewClient(opts)
			events := startClient(t, c)
			waitLink(t, events, EventConnected)
			waitClients(t, srv)

			tt.drop(srv)

			waitLink(t, events, EventDisconnected)
			waitLink(t, events, EventConnected)
			if !c.IsConnected() {
				t.Error("IsConnected() = false after relink")
			}
		})
	}
}

func TestClient_WaitConnected(t *testing.T) {
	opts := testOptions(socketDir(t))
	c := NewClient(opts)
	startClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.WaitConnected(ctx); err == nil {
		t.Fatal("WaitConnected() succeeded with no daemon")
	}

	startFakeDaemon(t, opts, nil)
	ctx2, cancel2 := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel2()
	if err := c.WaitConnected(ctx2); err != nil {
		t.Fatalf("WaitConnected() error = %v", err)
	}
}
