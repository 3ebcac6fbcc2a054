package daemon

import (
	"context"

	"github.com/tessro/dbxlink/internal/wire"
)

// Linker is the surface the overlay service and the CLI need from a daemon
// connection. It allows tests to substitute a fake without sockets.
type Linker interface {
	IsConnected() bool
	Submit(cmd *Command)
	Call(ctx context.Context, name string, args *wire.Args) (*wire.Args, error)
	FileStatus(ctx context.Context, path string, isDir bool) (*FileInfo, error)
	Register(name string, fn NotificationHandler)
	OnEvent(fn func(LinkEvent)) func()
}

// Compile-time assertions.
var (
	_ Linker      = (*Client)(nil)
	_ reconnecter = (*CommandChannel)(nil)
	_ reconnecter = (*HookChannel)(nil)
)
