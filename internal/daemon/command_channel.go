package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tessro/dbxlink/internal/event"
	"github.com/tessro/dbxlink/internal/logging"
	"github.com/tessro/dbxlink/internal/wire"
)

// CommandChannel is the request/response connection to the daemon's command
// socket. One worker goroutine owns the socket; it connects, retries, and
// services submitted Commands strictly in FIFO order.
type CommandChannel struct {
	opts Options
	log  *slog.Logger

	mu sync.Mutex
	// +checklocks:mu
	queue []*Command
	// +checklocks:mu
	stopped bool
	wake    chan struct{}

	state   atomic.Int32
	connGen atomic.Uint64
	started atomic.Bool
	done    chan struct{}

	events event.Emitter[ChannelEvent]
}

// NewCommandChannel creates a channel. Nothing connects until Start.
func NewCommandChannel(opts Options) *CommandChannel {
	return &CommandChannel{
		opts: opts.withDefaults(),
		log:  slog.With("channel", ChannelCommand),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// OnEvent registers a handler for connection events and returns a function
// that removes it. Handlers run on the worker goroutine unless SetPoster
// was called.
func (c *CommandChannel) OnEvent(fn func(ChannelEvent)) func() {
	return c.events.OnEvent(fn)
}

// SetPoster delivers connection events through p, typically an event loop.
func (c *CommandChannel) SetPoster(p event.Poster) {
	c.events.SetPoster(p)
}

// Start spawns the worker. It runs until ctx is done, then fails every
// queued Command with ErrDisconnected. Calls after the first are no-ops.
func (c *CommandChannel) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
}

// Done is closed once the worker has exited.
func (c *CommandChannel) Done() <-chan struct{} {
	return c.done
}

// Submit queues cmd. It is safe to call from any goroutine and never blocks.
func (c *CommandChannel) Submit(cmd *Command) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		cmd.fail(ErrDisconnected)
		return
	}
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// IsConnected reports whether the worker holds a live connection.
func (c *CommandChannel) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current connection state.
func (c *CommandChannel) State() State {
	return State(c.state.Load())
}

// ForceReconnect drops the connection once every Command submitted before
// it has been attempted. Commands still queued at that point complete with
// ErrDisconnected. No-op when not connected. A request that outlives the
// connection it was made on is discarded.
func (c *CommandChannel) ForceReconnect() {
	gen := c.connGen.Load()
	if !c.IsConnected() {
		return
	}
	c.log.Debug("reconnect requested", "conn", gen)
	c.Submit(newReconnect(gen))
}

// Call submits a generic request and waits for its completion.
func (c *CommandChannel) Call(ctx context.Context, name string, args *wire.Args) (*wire.Args, error) {
	type result struct {
		args *wire.Args
		err  error
	}
	ch := make(chan result, 1)
	c.Submit(NewCall(name, args, func(res *wire.Args, err error) {
		ch <- result{res, err}
	}))
	select {
	case r := <-ch:
		return r.args, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FileStatus submits a status query and waits for its completion.
func (c *CommandChannel) FileStatus(ctx context.Context, path string, isDir bool) (*FileInfo, error) {
	type result struct {
		info *FileInfo
		err  error
	}
	ch := make(chan result, 1)
	c.Submit(NewFileStatusQuery(path, isDir, func(info *FileInfo, err error) {
		ch <- result{info, err}
	}))
	select {
	case r := <-ch:
		return r.info, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CommandChannel) run(ctx context.Context) {
	defer logging.LogPanic("command-channel", nil)
	defer close(c.done)
	defer c.shutdown()

	attempt := 0
	for ctx.Err() == nil {
		c.setState(StateConnecting)
		conn, err := c.opts.dial(ctx, c.opts.CommandPath)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.setState(StateDisconnected)
			c.failQueued(ErrDisconnected)
			c.log.Debug("connect failed", "attempt", attempt, "error", err)
			c.events.Emit(ChannelEvent{Channel: ChannelCommand, Kind: EventConnectionAttempt, Attempt: attempt, Err: err})
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		attempt = 0
		gen := c.connGen.Add(1)
		c.setState(StateConnected)
		c.log.Info("connected", "conn", gen)
		c.events.Emit(ChannelEvent{Channel: ChannelCommand, Kind: EventConnected})

		err = c.serve(ctx, conn, gen)
		conn.Close()
		c.setState(StateDisconnected)
		c.failQueued(ErrDisconnected)

		switch {
		case errors.Is(err, errForcedReconnect), ctx.Err() != nil:
			c.log.Info("disconnected", "reason", err)
		case errors.Is(err, ErrProtocolViolation):
			c.log.Error("disconnected", "error", err)
		default:
			c.log.Warn("disconnected", "error", err)
		}
		c.events.Emit(ChannelEvent{Channel: ChannelCommand, Kind: EventDisconnected, Err: err})
	}
}

// serve services the queue on connection number gen until it must be
// dropped.
func (c *CommandChannel) serve(ctx context.Context, conn net.Conn, gen uint64) error {
	src := &timedReader{conn: conn}
	r := bufio.NewReader(src)
	for {
		cmd, err := c.next(ctx)
		if err != nil {
			return err
		}
		if cmd == nil {
			if err := c.checkIdle(conn, r); err != nil {
				return err
			}
			continue
		}
		if cmd.kind == kindReconnect {
			if cmd.conn != gen {
				c.log.Debug("stale reconnect request", "conn", cmd.conn, "current", gen)
				continue
			}
			return errForcedReconnect
		}

		log := c.log.With("id", cmd.ID, "name", cmd.Name())
		log.Debug("sending command")
		err = cmd.execute(func(name string, args *wire.Args) (*wire.Args, error) {
			return c.roundTrip(conn, src, r, name, args)
		})
		if err != nil {
			log.Debug("command interrupted", "error", err)
			cmd.fail(ErrDisconnected)
			return err
		}
	}
}

// next pops the oldest queued Command, waiting up to IdlePoll for one.
// It returns nil, nil when the wait timed out.
func (c *CommandChannel) next(ctx context.Context) (*Command, error) {
	if cmd := c.pop(); cmd != nil {
		return cmd, nil
	}

	timer := time.NewTimer(c.opts.IdlePoll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case <-c.wake:
		return c.pop(), nil
	}
}

func (c *CommandChannel) pop() *Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	cmd := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return cmd
}

// checkIdle polls the socket without blocking. The daemon never speaks
// first on this channel, so any readable byte is a protocol violation.
func (c *CommandChannel) checkIdle(conn net.Conn, r *bufio.Reader) error {
	if r.Buffered() > 0 {
		return fmt.Errorf("%w: %d unsolicited bytes on idle socket", ErrProtocolViolation, r.Buffered())
	}
	if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return err
	}
	_, err := r.Peek(1)
	if resetErr := conn.SetReadDeadline(time.Time{}); resetErr != nil && err == nil {
		return resetErr
	}
	if err == nil {
		return fmt.Errorf("%w: unsolicited bytes on idle socket", ErrProtocolViolation)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return fmt.Errorf("idle read: %w", err)
}

// roundTrip writes one request and reads its response. The write and each
// receive of the response are bounded by IOTimeout. Errors other than
// *wire.RemoteError end the connection.
func (c *CommandChannel) roundTrip(conn net.Conn, src *timedReader, r *bufio.Reader, name string, args *wire.Args) (*wire.Args, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.IOTimeout)); err != nil {
		return nil, err
	}
	if err := wire.WriteRequest(conn, name, args); err != nil {
		return nil, err
	}

	src.timeout = c.opts.IOTimeout
	res, err := wire.ReadResponse(r)
	src.timeout = 0
	if err != nil {
		if IsRemoteError(err) {
			c.log.Debug("daemon refused command", "name", name, "error", err)
			return nil, err
		}
		return nil, protocolViolation(err)
	}
	return res, nil
}

// waitRetry sleeps for RetryDelay. Commands submitted meanwhile are failed
// at once rather than left waiting for a connection. Returns false if ctx
// ended first.
func (c *CommandChannel) waitRetry(ctx context.Context) bool {
	timer := time.NewTimer(c.opts.RetryDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-c.wake:
			c.failQueued(ErrDisconnected)
		}
	}
}

// failQueued completes every queued Command with err, in FIFO order.
func (c *CommandChannel) failQueued(err error) {
	c.mu.Lock()
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, cmd := range queued {
		if cmd.kind == kindReconnect {
			continue
		}
		cmd.fail(err)
	}
}

func (c *CommandChannel) shutdown() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.setState(StateDisconnected)
	c.failQueued(ErrDisconnected)
}

func (c *CommandChannel) setState(s State) {
	c.state.Store(int32(s))
}

// timedReader arms a fresh read deadline before every read of conn while
// timeout is set, so a slow but steady response is not cut off.
type timedReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (t *timedReader) Read(p []byte) (int, error) {
	if t.timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, err
		}
	}
	return t.conn.Read(p)
}
