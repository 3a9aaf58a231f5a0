// Package notify abstracts the filesystem notification facility the
// copier registers its watches with.
//
// A Notifier hands out an opaque WatchID per registered path and then
// yields a single ordered stream of Items. Each Item is an event, a
// stream failure or the end of the stream. Backends are selected by name
// through the registry; "inotify" is the default on Linux and "fsnotify"
// is available everywhere.
package notify

import (
	"errors"
	"fmt"

	"github.com/containercopier/container-copier/internal/mask"
)

var (
	// ErrOverflow is reported when the kernel event queue overflowed and
	// events were lost.
	ErrOverflow = errors.New("event queue overflow")

	// ErrClosed is returned by Add after Close.
	ErrClosed = errors.New("notifier closed")
)

// WatchID identifies one registered watch. Registering the same path
// twice yields the same id.
type WatchID int

// Kind tags an Item.
type Kind int

const (
	// KindEvent carries a filesystem event.
	KindEvent Kind = iota
	// KindError carries a failure of the stream itself.
	KindError
	// KindEnd marks the end of the stream. No further items follow.
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindError:
		return "error"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one filesystem change reported for a watch.
type Event struct {
	WatchID WatchID
	// Mask holds the event kinds that occurred.
	Mask mask.Mask
	// Name is set when the event concerns an entry inside a watched directory.
	Name string
	// Removed is set when the backend dropped the watch, e.g. because the
	// watched file was deleted or a oneshot watch fired.
	Removed bool
}

// Item is one element of the notification stream.
type Item struct {
	Kind  Kind
	Event Event
	Err   error
}

// EventItem wraps an event.
func EventItem(ev Event) Item {
	return Item{Kind: KindEvent, Event: ev}
}

// ErrorItem wraps a stream failure.
func ErrorItem(err error) Item {
	return Item{Kind: KindError, Err: err}
}

// EndItem marks the end of the stream.
func EndItem() Item {
	return Item{Kind: KindEnd}
}

// Notifier registers watches and delivers their events.
//
// Add is called during setup only. Next is called from a single goroutine
// and blocks until an item is available. Close may be called from any
// goroutine; it makes a blocked Next return KindEnd.
type Notifier interface {
	Add(path string, m mask.Mask) (WatchID, error)
	Next() Item
	Close() error
}
