package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tessro/dbxlink/internal/config"
	"github.com/tessro/dbxlink/internal/paths"
)

// Options configures the channels. Zero values take the defaults from the
// config package.
type Options struct {
	// CommandSocket and HookSocket override path discovery. When empty the
	// path is resolved from the home directory at every connect attempt.
	CommandSocket string
	HookSocket    string

	ConnectTimeout time.Duration
	RetryDelay     time.Duration
	IOTimeout      time.Duration
	IdlePoll       time.Duration

	// VerifyPeer checks that each socket's peer runs as the current user.
	VerifyPeer bool
}

// OptionsFromConfig builds Options from a loaded config. cfg may be nil.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		ConnectTimeout: cfg.GetConnectTimeout(),
		RetryDelay:     cfg.GetRetryDelay(),
		IOTimeout:      cfg.GetIOTimeout(),
		IdlePoll:       cfg.GetIdlePoll(),
		VerifyPeer:     cfg.GetVerifyPeer(),
	}
	if cfg != nil {
		opts.CommandSocket = cfg.Daemon.CommandSocket
		opts.HookSocket = cfg.Daemon.HookSocket
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = config.DefaultConnectTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = config.DefaultRetryDelay
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = config.DefaultIOTimeout
	}
	if o.IdlePoll <= 0 {
		o.IdlePoll = config.DefaultIdlePoll
	}
	return o
}

// CommandPath resolves the command socket path.
func (o Options) CommandPath() (string, error) {
	if o.CommandSocket != "" {
		return o.CommandSocket, nil
	}
	return paths.CommandSocketPath()
}

// HookPath resolves the hook socket path.
func (o Options) HookPath() (string, error) {
	if o.HookSocket != "" {
		return o.HookSocket, nil
	}
	return paths.HookSocketPath()
}

// dial connects to a daemon socket. Every failure wraps ErrConnectionFailed.
func (o Options) dial(ctx context.Context, resolve func() (string, error)) (net.Conn, error) {
	path, err := resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve socket path: %w", ErrConnectionFailed, err)
	}

	d := net.Dialer{Timeout: o.ConnectTimeout}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if o.VerifyPeer {
		if err := checkPeer(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}
	return conn, nil
}
