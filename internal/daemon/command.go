package daemon

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tessro/dbxlink/internal/wire"
)

// Command names understood by the daemon.
const (
	CmdFileStatus     = "icon_overlay_file_status"
	CmdFolderTag      = "get_folder_tag"
	CmdEmblems        = "get_emblems"
	CmdEmblemPaths    = "get_emblem_paths"
	CmdContextOptions = "icon_overlay_context_options"
	CmdContextAction  = "icon_overlay_context_action"
)

type commandKind int

const (
	kindCall commandKind = iota
	kindFileStatus
	kindReconnect
)

// FileInfo is the result of a file status query.
type FileInfo struct {
	Path string
	// Status is the daemon's status word, e.g. "up to date" or "syncing".
	Status string
	// FolderTag is set for directories the daemon tags (e.g. "shared").
	FolderTag string
	Emblems   []string
}

// Command is a unit of work for a CommandChannel. Build one with NewCall or
// NewFileStatusQuery. Its completion runs exactly once, on the channel's
// worker goroutine; callers that need another goroutine must hop themselves.
type Command struct {
	// ID correlates the command's log lines.
	ID string

	kind  commandKind
	name  string
	args  *wire.Args
	path  string
	isDir bool
	conn  uint64

	onCall   func(*wire.Args, error)
	onStatus func(*FileInfo, error)

	completed atomic.Bool
}

// newReconnect builds the marker ForceReconnect queues. It is never sent,
// and it only drops the connection numbered conn.
func newReconnect(conn uint64) *Command {
	return &Command{kind: kindReconnect, name: "<reconnect>", conn: conn}
}

// NewCall creates a generic named request. done receives the response table,
// or an error: *wire.RemoteError for a non-ok answer, ErrDisconnected if the
// request could not be completed. done may be nil.
func NewCall(name string, args *wire.Args, done func(*wire.Args, error)) *Command {
	if args == nil {
		args = wire.NewArgs()
	}
	return &Command{
		ID:     uuid.NewString(),
		kind:   kindCall,
		name:   name,
		args:   args,
		onCall: done,
	}
}

// NewFileStatusQuery creates a status lookup for path. It issues
// icon_overlay_file_status, then get_folder_tag when isDir is set, then
// get_emblems, all before the next queued command. done may be nil.
func NewFileStatusQuery(path string, isDir bool, done func(*FileInfo, error)) *Command {
	return &Command{
		ID:       uuid.NewString(),
		kind:     kindFileStatus,
		name:     CmdFileStatus,
		path:     path,
		isDir:    isDir,
		onStatus: done,
	}
}

// Name returns the name of the first request the command sends.
func (c *Command) Name() string {
	return c.name
}

// Completed reports whether the completion has run.
func (c *Command) Completed() bool {
	return c.completed.Load()
}

// roundTripFunc sends one request and reads its response.
type roundTripFunc func(name string, args *wire.Args) (*wire.Args, error)

// execute performs the command's requests and completes it. A non-nil
// return means the connection failed; the command is then left incomplete
// for the caller to fail.
func (c *Command) execute(rt roundTripFunc) error {
	switch c.kind {
	case kindCall:
		res, err := rt(c.name, c.args)
		if err != nil && !IsRemoteError(err) {
			return err
		}
		c.finishCall(res, err)
		return nil
	case kindFileStatus:
		return c.queryStatus(rt)
	default:
		return errors.New("daemon: unexecutable command")
	}
}

func (c *Command) queryStatus(rt roundTripFunc) error {
	req := wire.NewArgs().Set("path", c.path)

	res, err := rt(CmdFileStatus, req)
	if err != nil {
		if IsRemoteError(err) {
			c.finishStatus(nil, err)
			return nil
		}
		return err
	}
	info := &FileInfo{Path: c.path, Status: res.First("status")}

	if c.isDir {
		res, err := rt(CmdFolderTag, req)
		switch {
		case err == nil:
			info.FolderTag = res.First("tag")
		case !IsRemoteError(err):
			return err
		}
	}

	res, err = rt(CmdEmblems, req)
	switch {
	case err == nil:
		info.Emblems = res.Get("emblems")
	case !IsRemoteError(err):
		return err
	}

	c.finishStatus(info, nil)
	return nil
}

// fail completes the command with err.
func (c *Command) fail(err error) {
	switch c.kind {
	case kindCall:
		c.finishCall(nil, err)
	case kindFileStatus:
		c.finishStatus(nil, err)
	}
}

func (c *Command) finishCall(res *wire.Args, err error) {
	if !c.completed.CompareAndSwap(false, true) {
		slog.Warn("command completed twice", "id", c.ID, "name", c.name)
		return
	}
	if c.onCall != nil {
		c.onCall(res, err)
	}
}

func (c *Command) finishStatus(info *FileInfo, err error) {
	if !c.completed.CompareAndSwap(false, true) {
		slog.Warn("command completed twice", "id", c.ID, "name", c.name)
		return
	}
	if c.onStatus != nil {
		c.onStatus(info, err)
	}
}
