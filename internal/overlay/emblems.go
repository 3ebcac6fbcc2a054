package overlay

import (
	"fmt"
	"strings"
)

// Status words reported by icon_overlay_file_status.
const (
	StatusUpToDate   = "up to date"
	StatusSyncing    = "syncing"
	StatusUnsyncable = "unsyncable"
)

// StatusEmblem maps a status word to its emblem name, or "" for statuses
// that have no emblem (including "unwatched").
func StatusEmblem(status string) string {
	switch status {
	case StatusUpToDate:
		return "dropbox-uptodate"
	case StatusSyncing:
		return "dropbox-syncing"
	case StatusUnsyncable:
		return "dropbox-unsyncable"
	default:
		return ""
	}
}

// FolderTagEmblem maps a folder tag to its emblem name, or "" for unknown
// tags.
func FolderTagEmblem(tag string) string {
	switch tag {
	case "public", "shared", "photos", "sandbox":
		return "dropbox-" + tag
	default:
		return ""
	}
}

// ContextOption is one entry of a file's context menu.
type ContextOption struct {
	Title   string
	Tooltip string
	Verb    string
}

// ParseContextOption parses the daemon's "title~tooltip~verb" form.
func ParseContextOption(s string) (ContextOption, error) {
	parts := strings.Split(s, "~")
	if len(parts) != 3 {
		return ContextOption{}, fmt.Errorf("context option %q: want title~tooltip~verb", s)
	}
	return ContextOption{Title: parts[0], Tooltip: parts[1], Verb: parts[2]}, nil
}
