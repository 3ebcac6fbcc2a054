// Package overlay provides typed access to the daemon's file-manager
// integration commands, with a status cache kept fresh by hook
// notifications.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/event"
	"github.com/tessro/dbxlink/internal/wire"
)

// EventKind identifies an overlay event.
type EventKind int

const (
	// EventInvalidate means the daemon asked for Path to be refreshed.
	EventInvalidate EventKind = iota
	// EventLaunchURL asks the user's browser to open URL.
	EventLaunchURL
	// EventLaunchFolder asks the file manager to open Path.
	EventLaunchFolder
	// EventEmblemPaths carries refreshed emblem search paths.
	EventEmblemPaths
	// EventLinked and EventUnlinked follow the daemon link.
	EventLinked
	EventUnlinked
)

func (k EventKind) String() string {
	switch k {
	case EventInvalidate:
		return "invalidate"
	case EventLaunchURL:
		return "launch_url"
	case EventLaunchFolder:
		return "launch_folder"
	case EventEmblemPaths:
		return "emblem_paths"
	case EventLinked:
		return "linked"
	case EventUnlinked:
		return "unlinked"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by a Service.
type Event struct {
	Kind  EventKind
	Path  string
	URL   string
	Paths []string
}

const refreshTimeout = 10 * time.Second

// Service wraps a daemon link. Create it before the link starts running so
// its notification handlers are in place.
type Service struct {
	link  daemon.Linker
	cache *statusCache

	mu sync.Mutex
	// +checklocks:mu
	emblemPaths []string

	events event.Emitter[Event]
}

// New creates a service on link holding at most cacheSize statuses.
func New(link daemon.Linker, cacheSize int) *Service {
	s := &Service{
		link:  link,
		cache: newStatusCache(cacheSize),
	}
	link.Register(daemon.HookShellTouch, s.onShellTouch)
	link.Register(daemon.HookLaunchURL, s.onLaunchURL)
	link.Register(daemon.HookLaunchFolder, s.onLaunchFolder)
	link.OnEvent(s.onLink)
	return s
}

// OnEvent registers a handler for overlay events. Handlers run on the
// daemon link's loop, except EventEmblemPaths which runs on its own
// goroutine.
func (s *Service) OnEvent(fn func(Event)) func() {
	return s.events.OnEvent(fn)
}

// FileStatus returns the status of path, from the cache when possible.
// A shell_touch or disconnect that lands while the daemon is being asked
// keeps the answer out of the cache.
func (s *Service) FileStatus(ctx context.Context, path string, isDir bool) (*daemon.FileInfo, error) {
	key := cacheKey{path: path, isDir: isDir}
	info, epoch, ok := s.cache.get(key)
	if ok {
		return info, nil
	}
	info, err := s.link.FileStatus(ctx, path, isDir)
	if err != nil {
		return nil, err
	}
	if !s.cache.putAt(key, info, epoch) {
		slog.Debug("file status invalidated during query", "path", path)
	}
	return info, nil
}

// Emblems returns every emblem name that applies to info: the status
// emblem, the folder tag emblem, then the daemon's own emblems.
func Emblems(info *daemon.FileInfo) []string {
	if info == nil {
		return nil
	}
	var out []string
	if e := StatusEmblem(info.Status); e != "" {
		out = append(out, e)
	}
	if e := FolderTagEmblem(info.FolderTag); e != "" {
		out = append(out, e)
	}
	return append(out, info.Emblems...)
}

// FolderTag asks the daemon for path's folder tag.
func (s *Service) FolderTag(ctx context.Context, path string) (string, error) {
	res, err := s.link.Call(ctx, daemon.CmdFolderTag, wire.NewArgs().Set("path", path))
	if err != nil {
		return "", err
	}
	return res.First("tag"), nil
}

// DaemonEmblems asks the daemon for the extra emblems on path.
func (s *Service) DaemonEmblems(ctx context.Context, path string) ([]string, error) {
	res, err := s.link.Call(ctx, daemon.CmdEmblems, wire.NewArgs().Set("path", path))
	if err != nil {
		return nil, err
	}
	return res.Get("emblems"), nil
}

// EmblemPaths returns the directories holding emblem icons. The answer is
// cached until the link drops.
func (s *Service) EmblemPaths(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	cached := s.emblemPaths
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	return s.refreshEmblemPaths(ctx)
}

func (s *Service) refreshEmblemPaths(ctx context.Context) ([]string, error) {
	res, err := s.link.Call(ctx, daemon.CmdEmblemPaths, nil)
	if err != nil {
		return nil, err
	}
	paths := res.Get("path")
	if paths == nil {
		paths = []string{}
	}
	s.mu.Lock()
	s.emblemPaths = paths
	s.mu.Unlock()
	return paths, nil
}

// ContextOptions returns the context menu entries for paths.
func (s *Service) ContextOptions(ctx context.Context, paths []string) ([]ContextOption, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths")
	}
	res, err := s.link.Call(ctx, daemon.CmdContextOptions, wire.NewArgs().Set("paths", paths...))
	if err != nil {
		return nil, err
	}
	var opts []ContextOption
	for _, raw := range res.Get("options") {
		opt, err := ParseContextOption(raw)
		if err != nil {
			slog.Warn("skipping context option", "error", err)
			continue
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// ContextAction runs a context menu verb on paths.
func (s *Service) ContextAction(ctx context.Context, paths []string, verb string) error {
	if len(paths) == 0 {
		return errors.New("no paths")
	}
	if verb == "" {
		return errors.New("no verb")
	}
	args := wire.NewArgs().Set("paths", paths...).Set("verb", verb)
	_, err := s.link.Call(ctx, daemon.CmdContextAction, args)
	return err
}

// Invalidate drops path from the cache.
func (s *Service) Invalidate(path string) {
	s.cache.remove(path)
}

// CacheLen returns the number of cached statuses.
func (s *Service) CacheLen() int {
	return s.cache.len()
}

func (s *Service) refreshOnConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	paths, err := s.refreshEmblemPaths(ctx)
	if err != nil {
		slog.Debug("emblem path refresh failed", "error", err)
		return
	}
	s.events.Emit(Event{Kind: EventEmblemPaths, Paths: paths})
}

func (s *Service) onShellTouch(args *wire.Args) {
	path := args.First("path")
	if path == "" {
		return
	}
	s.cache.remove(path)
	s.events.Emit(Event{Kind: EventInvalidate, Path: path})
}

func (s *Service) onLaunchURL(args *wire.Args) {
	if url := args.First("url"); url != "" {
		s.events.Emit(Event{Kind: EventLaunchURL, URL: url})
	}
}

func (s *Service) onLaunchFolder(args *wire.Args) {
	if path := args.First("path"); path != "" {
		s.events.Emit(Event{Kind: EventLaunchFolder, Path: path})
	}
}

func (s *Service) onLink(ev daemon.LinkEvent) {
	switch ev.Kind {
	case daemon.EventConnected:
		s.events.Emit(Event{Kind: EventLinked})
		// Async: link events run on the loop.
		go s.refreshOnConnect()
	case daemon.EventDisconnected:
		s.cache.clear()
		s.mu.Lock()
		s.emblemPaths = nil
		s.mu.Unlock()
		s.events.Emit(Event{Kind: EventUnlinked})
	}
}
