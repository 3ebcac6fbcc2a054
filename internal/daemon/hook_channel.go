package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/tessro/dbxlink/internal/event"
	"github.com/tessro/dbxlink/internal/logging"
	"github.com/tessro/dbxlink/internal/loop"
	"github.com/tessro/dbxlink/internal/wire"
)

// Notification names pushed by the daemon.
const (
	HookShellTouch   = "shell_touch"
	HookLaunchURL    = "launch_url"
	HookLaunchFolder = "launch_folder"
)

// NotificationHandler receives the arguments of one notification.
type NotificationHandler func(args *wire.Args)

// HookChannel listens for notifications on the daemon's hook socket.
//
// All state belongs to the event loop: dial results and socket reads are
// posted to it, parsing is resumable across reads, and handlers run on it.
// Apart from Start and IsConnected, methods must be called on the loop
// (or before Start).
type HookChannel struct {
	opts Options
	loop *loop.Loop
	log  *slog.Logger

	handlers map[string]NotificationHandler
	events   event.Emitter[ChannelEvent]

	// Loop-owned.
	ctx     context.Context
	state   State
	conn    net.Conn
	gen     uint64
	parser  wire.Parser
	attempt int
	retry   *time.Timer
	stopped bool

	connected atomic.Bool
	started   atomic.Bool
}

// NewHookChannel creates a hook channel driven by l.
func NewHookChannel(l *loop.Loop, opts Options) *HookChannel {
	return &HookChannel{
		opts:     opts.withDefaults(),
		loop:     l,
		log:      slog.With("channel", ChannelHook),
		handlers: make(map[string]NotificationHandler),
	}
}

// Register installs the handler for a notification name, replacing any
// previous one.
func (h *HookChannel) Register(name string, fn NotificationHandler) {
	h.handlers[name] = fn
}

// OnEvent registers a handler for connection events. Handlers run on the
// loop.
func (h *HookChannel) OnEvent(fn func(ChannelEvent)) func() {
	return h.events.OnEvent(fn)
}

// Start begins connecting. When ctx is done the connection is closed and no
// further reconnects are scheduled. Calls after the first are no-ops.
func (h *HookChannel) Start(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	h.loop.Post(func() {
		h.ctx = ctx
		h.connect()
	})
	go func() {
		<-ctx.Done()
		h.loop.Post(h.stop)
	}()
}

// IsConnected reports whether the hook socket is connected. Safe from any
// goroutine.
func (h *HookChannel) IsConnected() bool {
	return h.connected.Load()
}

// State returns the connection state. Loop only.
func (h *HookChannel) State() State {
	return h.state
}

// ForceReconnect tears the connection down immediately, which emits the
// disconnect event and schedules a reconnect. No-op when not connected.
func (h *HookChannel) ForceReconnect() {
	if h.conn == nil {
		return
	}
	h.log.Debug("reconnect requested")
	h.disconnect(errForcedReconnect)
}

func (h *HookChannel) connect() {
	h.retry = nil
	if h.stopped || h.conn != nil {
		return
	}
	h.state = StateConnecting
	h.gen++
	gen := h.gen
	ctx := h.ctx

	go func() {
		conn, err := h.opts.dial(ctx, h.opts.HookPath)
		if !h.loop.Post(func() { h.dialed(gen, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (h *HookChannel) dialed(gen uint64, conn net.Conn, err error) {
	if gen != h.gen || h.stopped {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		h.attempt++
		h.state = StateDisconnected
		h.log.Debug("connect failed", "attempt", h.attempt, "error", err)
		h.events.Emit(ChannelEvent{Channel: ChannelHook, Kind: EventConnectionAttempt, Attempt: h.attempt, Err: err})
		h.scheduleReconnect()
		return
	}

	h.attempt = 0
	h.conn = conn
	h.parser.Reset()
	h.state = StateConnected
	h.connected.Store(true)
	h.log.Info("connected")
	go h.pump(gen, conn)
	h.events.Emit(ChannelEvent{Channel: ChannelHook, Kind: EventConnected})
}

// pump forwards socket reads to the loop. It exits when the socket fails.
func (h *HookChannel) pump(gen uint64, conn net.Conn) {
	defer logging.LogPanic("hook-pump", nil)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !h.loop.Post(func() { h.readable(gen, chunk) }) {
				conn.Close()
				return
			}
		}
		if err != nil {
			if !h.loop.Post(func() { h.closed(gen, err) }) {
				conn.Close()
			}
			return
		}
	}
}

// readable resumes the parser with newly arrived bytes and dispatches every
// completed notification in arrival order.
func (h *HookChannel) readable(gen uint64, chunk []byte) {
	if gen != h.gen || h.conn == nil {
		return
	}

	msgs, err := h.parser.Feed(chunk)
	for _, msg := range msgs {
		h.dispatch(msg)
		if gen != h.gen {
			// A handler forced a reconnect.
			return
		}
	}
	if err != nil {
		h.disconnect(protocolViolation(err))
	}
}

func (h *HookChannel) dispatch(msg wire.Message) {
	fn, ok := h.handlers[msg.Name]
	if !ok {
		h.log.Debug("unhandled notification", "name", msg.Name)
		return
	}
	h.log.Debug("notification", "name", msg.Name, "args", msg.Args.Len())
	fn(msg.Args)
}

func (h *HookChannel) closed(gen uint64, err error) {
	if gen != h.gen || h.conn == nil {
		return
	}
	h.disconnect(err)
}

// disconnect drops the connection, emits the disconnect event, and unless
// stopped schedules a reconnect after RetryDelay.
func (h *HookChannel) disconnect(reason error) {
	h.gen++
	h.conn.Close()
	h.conn = nil
	h.parser.Reset()
	h.state = StateDisconnected
	h.connected.Store(false)

	switch {
	case errors.Is(reason, errForcedReconnect), h.stopped:
		h.log.Info("disconnected", "reason", reason)
	case errors.Is(reason, ErrProtocolViolation):
		h.log.Error("disconnected", "error", reason)
	default:
		h.log.Warn("disconnected", "error", fmt.Errorf("read: %w", reason))
	}
	h.events.Emit(ChannelEvent{Channel: ChannelHook, Kind: EventDisconnected, Err: reason})

	h.scheduleReconnect()
}

func (h *HookChannel) scheduleReconnect() {
	if h.stopped || h.retry != nil {
		return
	}
	h.retry = h.loop.AfterFunc(h.opts.RetryDelay, h.connect)
}

func (h *HookChannel) stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	if h.retry != nil {
		h.retry.Stop()
		h.retry = nil
	}
	if h.conn != nil {
		h.disconnect(context.Canceled)
	} else {
		// Invalidate any dial still in flight.
		h.gen++
		h.state = StateDisconnected
	}
}
