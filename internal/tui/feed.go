package tui

import (
	"log/slog"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/overlay"
)

// LinkEvents is the part of a daemon client the feed subscribes to.
type LinkEvents interface {
	OnEvent(fn func(daemon.LinkEvent)) func()
}

// OverlayEvents is the part of an overlay service the feed subscribes to.
type OverlayEvents interface {
	OnEvent(fn func(overlay.Event)) func()
}

// feedBuffer bounds how far the monitor may fall behind the daemon.
const feedBuffer = 256

// Feed subscribes to link and overlay events and turns them into entries.
// Events are dropped rather than blocking the link's loop when the buffer
// is full. The returned function unsubscribes.
func Feed(link LinkEvents, svc OverlayEvents) (<-chan Entry, func()) {
	ch := make(chan Entry, feedBuffer)
	push := func(e Entry) {
		select {
		case ch <- e:
		default:
			slog.Warn("monitor feed full, dropping event", "kind", e.Kind)
		}
	}
	unsubLink := link.OnEvent(func(ev daemon.LinkEvent) { push(LinkEntry(ev)) })
	unsubOverlay := svc.OnEvent(func(ev overlay.Event) {
		// Linked and Unlinked repeat the link events.
		if ev.Kind == overlay.EventLinked || ev.Kind == overlay.EventUnlinked {
			return
		}
		push(OverlayEntry(ev))
	})
	return ch, func() {
		unsubLink()
		unsubOverlay()
	}
}
