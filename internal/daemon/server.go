package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/tessro/dbxlink/internal/logging"
	"github.com/tessro/dbxlink/internal/wire"
)

// Request is one command received by a Server.
type Request struct {
	Name string
	Args *wire.Args
}

// Handler answers command requests for a Server. A nil table with a nil
// error is answered as "ok" with no arguments. A *wire.RemoteError is
// answered with its status; any other error with "notok".
type Handler interface {
	Handle(ctx context.Context, req *Request) (*wire.Args, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*wire.Args, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*wire.Args, error) {
	return f(ctx, req)
}

// StatusNotOK is the status a Server sends for a failed command.
const StatusNotOK = "notok"

// Server is a stand-in for the Dropbox daemon. It answers the line protocol
// on a command socket and pushes notifications to clients of a hook socket.
type Server struct {
	commandPath string
	hookPath    string
	handler     Handler

	mu sync.Mutex
	// +checklocks:mu
	listeners []net.Listener
	// +checklocks:mu
	commandConns map[net.Conn]struct{}
	// +checklocks:mu
	hookConns map[net.Conn]*sync.Mutex
	// +checklocks:mu
	started bool
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server for the given socket paths.
func NewServer(commandPath, hookPath string, handler Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		commandPath:  commandPath,
		hookPath:     hookPath,
		handler:      handler,
		commandConns: make(map[net.Conn]struct{}),
		hookConns:    make(map[net.Conn]*sync.Mutex),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// CommandPath returns the command socket path.
func (s *Server) CommandPath() string { return s.commandPath }

// HookPath returns the hook socket path.
func (s *Server) HookPath() string { return s.hookPath }

// Start listens on both sockets.
// Returns an error if the server is already running or cannot bind.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("server already started")
	}
	select {
	case <-s.done:
		return errors.New("server stopped")
	default:
	}

	cmdLn, err := listen(s.commandPath)
	if err != nil {
		return err
	}
	hookLn, err := listen(s.hookPath)
	if err != nil {
		cmdLn.Close()
		return err
	}

	s.listeners = []net.Listener{cmdLn, hookLn}
	s.started = true

	slog.Info("fake daemon started", "command_socket", s.commandPath, "hook_socket", s.hookPath)

	go s.acceptLoop(cmdLn, s.handleCommandConn)
	go s.acceptLoop(hookLn, s.handleHookConn)
	return nil
}

func listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}
	return ln, nil
}

func (s *Server) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	defer logging.LogPanic("fake-daemon-accept", nil)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept connection failed", "error", err)
			continue
		}
		go handle(conn)
	}
}

// handleCommandConn answers requests on one command connection in order.
func (s *Server) handleCommandConn(conn net.Conn) {
	defer logging.LogPanic("fake-daemon-command", nil)
	s.track(conn, true)
	defer s.untrack(conn)

	var parser wire.Parser
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, perr := parser.Feed(buf[:n])
			for _, msg := range msgs {
				if werr := s.answer(conn, msg); werr != nil {
					slog.Debug("write response failed", "error", werr)
					return
				}
			}
			if perr != nil {
				slog.Warn("malformed request", "error", perr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("read request failed", "error", err)
			}
			return
		}
	}
}

func (s *Server) answer(conn net.Conn, msg wire.Message) error {
	slog.Debug("request received", "name", msg.Name)

	var (
		res *wire.Args
		err error
	)
	if s.handler != nil {
		res, err = s.handler.Handle(s.ctx, &Request{Name: msg.Name, Args: msg.Args})
	} else {
		err = &wire.RemoteError{Status: StatusNotOK}
	}

	var out []byte
	if err != nil {
		status := StatusNotOK
		var re *wire.RemoteError
		if errors.As(err, &re) && re.Status != "" && re.Status != wire.StatusOK {
			status = re.Status
		}
		slog.Debug("request failed", "name", msg.Name, "error", err)
		out = wire.EncodeFailure(status)
	} else {
		out = wire.EncodeResponse(res)
	}
	_, werr := conn.Write(out)
	return werr
}

// handleHookConn holds a hook connection open until the client leaves.
// Clients never send on this socket; anything read is discarded.
func (s *Server) handleHookConn(conn net.Conn) {
	defer logging.LogPanic("fake-daemon-hook", nil)
	s.track(conn, false)
	defer s.untrack(conn)
	_, _ = io.Copy(io.Discard, conn)
}

func (s *Server) track(conn net.Conn, command bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if command {
		s.commandConns[conn] = struct{}{}
	} else {
		s.hookConns[conn] = &sync.Mutex{}
	}
	slog.Debug("client connected", "command", len(s.commandConns), "hook", len(s.hookConns))
}

func (s *Server) untrack(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commandConns, conn)
	delete(s.hookConns, conn)
}

// Notify sends a notification to every hook client and returns how many
// received it.
func (s *Server) Notify(name string, args *wire.Args) int {
	return s.Broadcast(wire.EncodeRequest(name, args))
}

// Broadcast writes raw bytes to every hook client. Each client gets the
// bytes in a single write.
func (s *Server) Broadcast(p []byte) int {
	s.mu.Lock()
	type target struct {
		conn net.Conn
		mu   *sync.Mutex
	}
	targets := make([]target, 0, len(s.hookConns))
	for conn, mu := range s.hookConns {
		targets = append(targets, target{conn, mu})
	}
	s.mu.Unlock()

	sent := 0
	for _, t := range targets {
		t.mu.Lock()
		_, err := t.conn.Write(p)
		t.mu.Unlock()
		if err != nil {
			slog.Debug("notify failed", "error", err)
			continue
		}
		sent++
	}
	return sent
}

// HookClients returns the number of connected hook clients.
func (s *Server) HookClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hookConns)
}

// CommandClients returns the number of connected command clients.
func (s *Server) CommandClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commandConns)
}

// DropCommandClients closes every command connection.
func (s *Server) DropCommandClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.commandConns {
		conn.Close()
	}
}

// DropHookClients closes every hook connection.
func (s *Server) DropHookClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.hookConns {
		conn.Close()
	}
}

// Stop closes the listeners and every connection and removes the sockets.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.done)
	s.cancel()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
	for conn := range s.commandConns {
		conn.Close()
	}
	for conn := range s.hookConns {
		conn.Close()
	}
	s.mu.Unlock()

	os.Remove(s.commandPath)
	os.Remove(s.hookPath)

	slog.Info("fake daemon stopped")
	return nil
}
