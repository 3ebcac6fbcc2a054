// Package daemon talks to the Dropbox daemon over its two local sockets: a
// command socket for request/response calls and a hook socket carrying
// notifications. It also provides a fake daemon for tests and development.
package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tessro/dbxlink/internal/event"
	"github.com/tessro/dbxlink/internal/loop"
	"github.com/tessro/dbxlink/internal/wire"
)

type reconnecter interface {
	ForceReconnect()
}

// Client joins a CommandChannel and a HookChannel into one link to the
// daemon. It reports connected only while both channels are up, and when
// one channel drops it forces the other down too so the pair reconnects
// together.
type Client struct {
	loop *loop.Loop
	cmd  *CommandChannel
	hook *HookChannel

	// partners are what the link forces to reconnect; tests swap them.
	partners [2]reconnecter

	mu sync.Mutex
	// +checklocks:mu
	link Link

	events event.Emitter[LinkEvent]
}

// NewClient creates a client. Register notification handlers, then call Run.
func NewClient(opts Options) *Client {
	l := loop.New()
	c := &Client{
		loop: l,
		cmd:  NewCommandChannel(opts),
		hook: NewHookChannel(l, opts),
	}
	c.partners[SideCommand] = c.cmd
	c.partners[SideHook] = c.hook

	// The link and the hook channel live on the loop, so command events
	// are moved there too.
	c.cmd.SetPoster(l)
	c.cmd.OnEvent(func(ev ChannelEvent) { c.observe(SideCommand, ev) })
	c.hook.OnEvent(func(ev ChannelEvent) { c.observe(SideHook, ev) })
	return c
}

// Loop returns the event loop that drives the hook channel and delivers
// link events.
func (c *Client) Loop() *loop.Loop {
	return c.loop
}

// Commands returns the command channel.
func (c *Client) Commands() *CommandChannel {
	return c.cmd
}

// Hooks returns the hook channel.
func (c *Client) Hooks() *HookChannel {
	return c.hook
}

// Register installs a notification handler. Call before Run.
func (c *Client) Register(name string, fn NotificationHandler) {
	c.hook.Register(name, fn)
}

// OnEvent registers a handler for link events. Handlers run on the loop.
func (c *Client) OnEvent(fn func(LinkEvent)) func() {
	return c.events.OnEvent(fn)
}

// Run starts both channels and drives the loop until ctx is done. On return
// the hook socket is closed and the command worker has exited.
func (c *Client) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- c.loop.Run(loopCtx) }()

	c.cmd.Start(ctx)
	c.hook.Start(ctx)

	<-ctx.Done()
	<-c.cmd.Done()
	// Runs after any command events the worker posted on its way out.
	_ = c.loop.Do(context.Background(), c.hook.stop)
	stopLoop()
	<-loopDone
	return ctx.Err()
}

// IsConnected reports whether both channels are connected.
func (c *Client) IsConnected() bool {
	return c.cmd.IsConnected() && c.hook.IsConnected()
}

// LinkState returns the combined state as last seen by the link.
func (c *Client) LinkState() LinkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link.State()
}

// ForceReconnect drops the command connection. The link then takes the hook
// channel down with it and both reconnect.
func (c *Client) ForceReconnect() {
	c.cmd.ForceReconnect()
}

// Submit queues a command on the command channel.
func (c *Client) Submit(cmd *Command) {
	c.cmd.Submit(cmd)
}

// Call issues a generic request and waits for the answer.
func (c *Client) Call(ctx context.Context, name string, args *wire.Args) (*wire.Args, error) {
	return c.cmd.Call(ctx, name, args)
}

// FileStatus queries a path's status and waits for the answer.
func (c *Client) FileStatus(ctx context.Context, path string, isDir bool) (*FileInfo, error) {
	return c.cmd.FileStatus(ctx, path, isDir)
}

// WaitConnected blocks until both channels are up or ctx is done.
func (c *Client) WaitConnected(ctx context.Context) error {
	up := make(chan struct{}, 1)
	unsubscribe := c.OnEvent(func(ev LinkEvent) {
		if ev.Kind == EventConnected {
			select {
			case up <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if c.IsConnected() {
		return nil
	}
	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// observe feeds one channel event through the link. State changes are made
// under the lock; the resulting reconnect and events run after releasing it
// because a forced hook reconnect re-enters observe synchronously.
func (c *Client) observe(side Side, ev ChannelEvent) {
	var t Transition
	c.mu.Lock()
	switch ev.Kind {
	case EventConnected:
		t = c.link.Up(side)
	case EventDisconnected:
		t = c.link.Down(side)
	case EventConnectionAttempt:
		c.mu.Unlock()
		c.events.Emit(LinkEvent{Kind: EventConnectionAttempt, Channel: ev.Channel, Attempt: ev.Attempt, Err: ev.Err})
		return
	}
	c.mu.Unlock()

	if t.From != t.To {
		slog.Debug("link state", "from", t.From, "to", t.To, "channel", side)
	}
	if t.Reconnect {
		slog.Info("channel dropped alone, forcing partner to reconnect", "down", side, "partner", t.Partner)
		c.partners[t.Partner].ForceReconnect()
	}
	if t.Connected {
		slog.Info("connected to daemon")
		c.events.Emit(LinkEvent{Kind: EventConnected})
	}
	if t.Disconnected {
		slog.Info("disconnected from daemon")
		c.events.Emit(LinkEvent{Kind: EventDisconnected, Err: ev.Err})
	}
}
