package overlay

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/wire"
)

// fakeLink answers calls from a table and lets tests fire hooks and link
// events by hand.
type fakeLink struct {
	mu        sync.Mutex
	calls     []string
	lastArgs  *wire.Args
	answers   map[string]*wire.Args
	statuses  map[string]*daemon.FileInfo
	handlers  map[string]daemon.NotificationHandler
	listeners []func(daemon.LinkEvent)

	// duringStatus runs inside FileStatus, before the answer returns.
	duringStatus func(path string)
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		answers:  make(map[string]*wire.Args),
		statuses: make(map[string]*daemon.FileInfo),
		handlers: make(map[string]daemon.NotificationHandler),
	}
}

func (f *fakeLink) IsConnected() bool { return true }

func (f *fakeLink) Submit(*daemon.Command) {}

func (f *fakeLink) Call(_ context.Context, name string, args *wire.Args) (*wire.Args, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.lastArgs = args
	res, ok := f.answers[name]
	if !ok {
		return nil, &wire.RemoteError{Status: "notok"}
	}
	return res, nil
}

func (f *fakeLink) FileStatus(_ context.Context, path string, isDir bool) (*daemon.FileInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, daemon.CmdFileStatus)
	info, ok := f.statuses[path]
	during := f.duringStatus
	f.mu.Unlock()
	if during != nil {
		during(path)
	}
	if !ok {
		return nil, &wire.RemoteError{Status: "notok"}
	}
	if !isDir {
		cp := *info
		cp.FolderTag = ""
		info = &cp
	}
	return info, nil
}

func (f *fakeLink) Register(name string, fn daemon.NotificationHandler) {
	f.handlers[name] = fn
}

func (f *fakeLink) OnEvent(fn func(daemon.LinkEvent)) func() {
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeLink) notify(name string, args *wire.Args) {
	f.handlers[name](args)
}

func (f *fakeLink) link(kind daemon.EventKind) {
	for _, fn := range f.listeners {
		fn(daemon.LinkEvent{Kind: kind})
	}
}

func (f *fakeLink) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestService_FileStatusCache(t *testing.T) {
	link := newFakeLink()
	link.statuses["/d/a.txt"] = &daemon.FileInfo{Path: "/d/a.txt", Status: StatusSyncing}
	s := New(link, 8)

	var events []Event
	s.OnEvent(func(ev Event) { events = append(events, ev) })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		info, err := s.FileStatus(ctx, "/d/a.txt", false)
		if err != nil {
			t.Fatal(err)
		}
		if info.Status != StatusSyncing {
			t.Errorf("Status = %q", info.Status)
		}
	}
	if n := link.callCount(daemon.CmdFileStatus); n != 1 {
		t.Errorf("daemon queried %d times, want 1", n)
	}

	link.notify(daemon.HookShellTouch, wire.NewArgs().Set("path", "/d/a.txt"))
	if s.CacheLen() != 0 {
		t.Errorf("CacheLen() = %d after shell_touch", s.CacheLen())
	}
	if len(events) != 1 || events[0].Kind != EventInvalidate || events[0].Path != "/d/a.txt" {
		t.Errorf("events = %+v", events)
	}

	s.FileStatus(ctx, "/d/a.txt", false)
	if n := link.callCount(daemon.CmdFileStatus); n != 2 {
		t.Errorf("daemon queried %d times after invalidate, want 2", n)
	}

	if _, err := s.FileStatus(ctx, "/elsewhere", false); err == nil {
		t.Error("expected error for refused path")
	}
}

func TestService_FileStatusInvalidatedDuringQuery(t *testing.T) {
	tests := []struct {
		name string
		fire func(*fakeLink, string)
	}{
		{"shell_touch", func(l *fakeLink, path string) {
			l.notify(daemon.HookShellTouch, wire.NewArgs().Set("path", path))
		}},
		{"disconnect", func(l *fakeLink, _ string) { l.link(daemon.EventDisconnected) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			link.statuses["/p"] = &daemon.FileInfo{Path: "/p", Status: StatusSyncing}
			s := New(link, 8)
			link.duringStatus = func(path string) {
				link.duringStatus = nil
				tt.fire(link, path)
			}

			ctx := context.Background()
			info, err := s.FileStatus(ctx, "/p", false)
			if err != nil {
				t.Fatal(err)
			}
			if info.Status != StatusSyncing {
				t.Errorf("Status = %q", info.Status)
			}
			if s.CacheLen() != 0 {
				t.Errorf("CacheLen() = %d, answer cached across an invalidation", s.CacheLen())
			}

			s.FileStatus(ctx, "/p", false)
			if n := link.callCount(daemon.CmdFileStatus); n != 2 {
				t.Errorf("daemon queried %d times, want 2", n)
			}
			if s.CacheLen() != 1 {
				t.Errorf("CacheLen() = %d after a clean query, want 1", s.CacheLen())
			}
		})
	}
}

func TestService_FileStatusDirectoryLookup(t *testing.T) {
	link := newFakeLink()
	link.statuses["/d"] = &daemon.FileInfo{Path: "/d", Status: StatusUpToDate, FolderTag: "shared"}
	s := New(link, 8)
	ctx := context.Background()

	info, err := s.FileStatus(ctx, "/d", false)
	if err != nil {
		t.Fatal(err)
	}
	if info.FolderTag != "" {
		t.Errorf("file lookup FolderTag = %q", info.FolderTag)
	}

	info, err = s.FileStatus(ctx, "/d", true)
	if err != nil {
		t.Fatal(err)
	}
	if info.FolderTag != "shared" {
		t.Errorf("directory lookup FolderTag = %q, want shared", info.FolderTag)
	}
	if n := link.callCount(daemon.CmdFileStatus); n != 2 {
		t.Errorf("daemon queried %d times, want 2", n)
	}

	s.FileStatus(ctx, "/d", true)
	s.FileStatus(ctx, "/d", false)
	if n := link.callCount(daemon.CmdFileStatus); n != 2 {
		t.Errorf("daemon queried %d times after both lookups were cached, want 2", n)
	}

	s.Invalidate("/d")
	if s.CacheLen() != 0 {
		t.Errorf("CacheLen() = %d after Invalidate", s.CacheLen())
	}
}

func TestService_LinkEvents(t *testing.T) {
	link := newFakeLink()
	link.statuses["/p"] = &daemon.FileInfo{Path: "/p", Status: StatusUpToDate}
	link.answers[daemon.CmdEmblemPaths] = wire.NewArgs().Set("path", "/icons/a", "/icons/b")
	s := New(link, 8)

	events := make(chan Event, 8)
	s.OnEvent(func(ev Event) { events <- ev })

	link.link(daemon.EventConnected)
	if ev := <-events; ev.Kind != EventLinked {
		t.Fatalf("first event = %s, want linked", ev.Kind)
	}
	select {
	case ev := <-events:
		if ev.Kind != EventEmblemPaths || !reflect.DeepEqual(ev.Paths, []string{"/icons/a", "/icons/b"}) {
			t.Errorf("refresh event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emblem paths not refreshed on connect")
	}

	paths, err := s.EmblemPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(paths, []string{"/icons/a", "/icons/b"}) {
		t.Errorf("EmblemPaths() = %v", paths)
	}
	if n := link.callCount(daemon.CmdEmblemPaths); n != 1 {
		t.Errorf("emblem paths fetched %d times, want 1", n)
	}

	s.FileStatus(context.Background(), "/p", false)
	link.link(daemon.EventDisconnected)
	if s.CacheLen() != 0 {
		t.Error("cache not cleared on disconnect")
	}
	if ev := <-events; ev.Kind != EventUnlinked {
		t.Errorf("last event = %s, want unlinked", ev.Kind)
	}

	s.EmblemPaths(context.Background())
	if n := link.callCount(daemon.CmdEmblemPaths); n != 2 {
		t.Errorf("emblem paths fetched %d times after relink, want 2", n)
	}
}

func TestService_LaunchNotifications(t *testing.T) {
	link := newFakeLink()
	s := New(link, 8)

	var got []Event
	s.OnEvent(func(ev Event) { got = append(got, ev) })

	link.notify(daemon.HookLaunchURL, wire.NewArgs().Set("url", "https://www.dropbox.com/home"))
	link.notify(daemon.HookLaunchFolder, wire.NewArgs().Set("path", "/home/x/Dropbox"))
	link.notify(daemon.HookLaunchURL, wire.NewArgs())

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Kind != EventLaunchURL || got[0].URL != "https://www.dropbox.com/home" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Kind != EventLaunchFolder || got[1].Path != "/home/x/Dropbox" {
		t.Errorf("event 1 = %+v", got[1])
	}
}

func TestService_ContextMenu(t *testing.T) {
	link := newFakeLink()
	link.answers[daemon.CmdContextOptions] = wire.NewArgs().Set("options",
		"Share~Share this file~share",
		"broken",
		"View on Dropbox.com~Open in browser~browse",
	)
	link.answers[daemon.CmdContextAction] = wire.NewArgs()
	s := New(link, 8)
	ctx := context.Background()

	opts, err := s.ContextOptions(ctx, []string{"/a", "/b"})
	if err != nil {
		t.Fatal(err)
	}
	want := []ContextOption{
		{Title: "Share", Tooltip: "Share this file", Verb: "share"},
		{Title: "View on Dropbox.com", Tooltip: "Open in browser", Verb: "browse"},
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("ContextOptions() = %+v", opts)
	}
	if got := link.lastArgs.Get("paths"); !reflect.DeepEqual(got, []string{"/a", "/b"}) {
		t.Errorf("paths arg = %v", got)
	}

	if err := s.ContextAction(ctx, []string{"/a"}, "share"); err != nil {
		t.Fatal(err)
	}
	if link.lastArgs.First("verb") != "share" {
		t.Errorf("verb arg = %v", link.lastArgs.Get("verb"))
	}

	if _, err := s.ContextOptions(ctx, nil); err == nil {
		t.Error("expected error for no paths")
	}
	if err := s.ContextAction(ctx, []string{"/a"}, ""); err == nil {
		t.Error("expected error for empty verb")
	}
}

func TestService_RemoteErrorsPassThrough(t *testing.T) {
	s := New(newFakeLink(), 8)
	_, err := s.FolderTag(context.Background(), "/x")
	var re *wire.RemoteError
	if !errors.As(err, &re) {
		t.Errorf("FolderTag() error = %v, want *wire.RemoteError", err)
	}
}

func TestEmblems(t *testing.T) {
	tests := []struct {
		name string
		info *daemon.FileInfo
		want []string
	}{
		{"nil", nil, nil},
		{"up to date", &daemon.FileInfo{Status: StatusUpToDate}, []string{"dropbox-uptodate"}},
		{"shared folder syncing", &daemon.FileInfo{Status: StatusSyncing, FolderTag: "shared"}, []string{"dropbox-syncing", "dropbox-shared"}},
		{"unknown status", &daemon.FileInfo{Status: "unwatched", FolderTag: "mystery"}, nil},
		{"daemon emblems appended", &daemon.FileInfo{Status: StatusUnsyncable, Emblems: []string{"locked"}}, []string{"dropbox-unsyncable", "locked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Emblems(tt.info); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Emblems() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseContextOption(t *testing.T) {
	if _, err := ParseContextOption("a~b"); err == nil {
		t.Error("expected error for two fields")
	}
	opt, err := ParseContextOption("Title~~verb")
	if err != nil || opt.Tooltip != "" || opt.Verb != "verb" {
		t.Errorf("ParseContextOption() = %+v, %v", opt, err)
	}
}

func TestStatusCache_Evicts(t *testing.T) {
	c := newStatusCache(2)
	key := func(p string) cacheKey { return cacheKey{path: p} }
	put := func(p string) {
		_, epoch, _ := c.get(key(p))
		c.putAt(key(p), &daemon.FileInfo{Path: p}, epoch)
	}
	put("a")
	put("b")
	c.get(key("a"))
	put("c")

	if _, _, ok := c.get(key("b")); ok {
		t.Error("least recently used entry survived")
	}
	for _, k := range []string{"a", "c"} {
		if _, _, ok := c.get(key(k)); !ok {
			t.Errorf("%s evicted", k)
		}
	}
	if c.len() != 2 {
		t.Errorf("len() = %d", c.len())
	}
}

func TestStatusCache_PutAtStaleEpoch(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(*statusCache)
	}{
		{"remove", func(c *statusCache) { c.remove("/p") }},
		{"remove other path", func(c *statusCache) { c.remove("/q") }},
		{"clear", (*statusCache).clear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStatusCache(4)
			key := cacheKey{path: "/p"}
			_, epoch, _ := c.get(key)
			tt.invalidate(c)
			if c.putAt(key, &daemon.FileInfo{Path: "/p"}, epoch) {
				t.Error("putAt() stored an answer older than the invalidation")
			}
			if c.len() != 0 {
				t.Errorf("len() = %d", c.len())
			}
		})
	}
}

func TestStatusCache_RemoveBothLookups(t *testing.T) {
	c := newStatusCache(4)
	for _, isDir := range []bool{false, true} {
		key := cacheKey{path: "/d", isDir: isDir}
		_, epoch, _ := c.get(key)
		c.putAt(key, &daemon.FileInfo{Path: "/d"}, epoch)
	}
	if c.len() != 2 {
		t.Fatalf("len() = %d, want 2", c.len())
	}
	if !c.remove("/d") {
		t.Error("remove() = false for a cached path")
	}
	if c.len() != 0 {
		t.Errorf("len() = %d after remove", c.len())
	}
}
