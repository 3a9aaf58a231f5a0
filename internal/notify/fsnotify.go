package notify

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/containercopier/container-copier/internal/mask"
)

// BackendFsnotify uses the portable fsnotify library. It only knows about
// create, write, remove, rename and chmod, so masks selecting other kinds
// (ACCESS, OPEN, CLOSE_*) never fire with this backend.
const BackendFsnotify = "fsnotify"

func init() {
	Register(BackendFsnotify, NewFsnotify)
}

type fsWatch struct {
	id   WatchID
	path string
	mask mask.Mask
}

// Fsnotify is a Notifier backed by an fsnotify.Watcher. Watch ids are
// assigned sequentially and events are filtered against each watch mask
// in-process.
type Fsnotify struct {
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
	nextID WatchID
	byPath map[string]*fsWatch
}

// NewFsnotify creates an fsnotify-backed Notifier.
func NewFsnotify() (Notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Fsnotify{
		watcher: watcher,
		byPath:  make(map[string]*fsWatch),
	}, nil
}

// Add registers path. A path registered twice keeps its id and the masks
// are combined.
func (n *Fsnotify) Add(path string, m mask.Mask) (WatchID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return 0, ErrClosed
	}

	path = filepath.Clean(path)
	if existing, ok := n.byPath[path]; ok {
		existing.mask |= m
		return existing.id, nil
	}
	if err := n.watcher.Add(path); err != nil {
		return 0, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	n.nextID++
	n.byPath[path] = &fsWatch{id: n.nextID, path: path, mask: m}
	return n.nextID, nil
}

// Next blocks until an event matching some watch mask arrives, the
// watcher reports an error, or the watcher is closed.
func (n *Fsnotify) Next() Item {
	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return EndItem()
			}
			if ev, ok := n.convertEvent(event); ok {
				return EventItem(ev)
			}

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return EndItem()
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				return ErrorItem(fmt.Errorf("%w: %v", ErrOverflow, err))
			}
			return ErrorItem(err)
		}
	}
}

// convertEvent translates an fsnotify event for a watched path. It
// returns false when the event does not match the watch mask.
func (n *Fsnotify) convertEvent(event fsnotify.Event) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	watch, ok := n.byPath[filepath.Clean(event.Name)]
	if !ok {
		// Not one of ours, or a oneshot that already fired. Let the
		// caller decide what an unknown id means.
		return Event{Mask: opMask(event.Op)}, true
	}

	bits := opMask(event.Op)
	if !watch.mask.Matches(bits) {
		return Event{}, false
	}

	if watch.mask.Has(mask.Oneshot) {
		delete(n.byPath, watch.path)
		_ = n.watcher.Remove(watch.path)
	}
	return Event{WatchID: watch.id, Mask: bits}, true
}

// opMask maps fsnotify operations onto mask bits. Events arrive for the
// watched file itself, so removal and rename are the *_SELF kinds.
func opMask(op fsnotify.Op) mask.Mask {
	var m mask.Mask
	if op.Has(fsnotify.Create) {
		m |= mask.Create
	}
	if op.Has(fsnotify.Write) {
		m |= mask.Modify
	}
	if op.Has(fsnotify.Remove) {
		m |= mask.DeleteSelf
	}
	if op.Has(fsnotify.Rename) {
		m |= mask.MoveSelf
	}
	if op.Has(fsnotify.Chmod) {
		m |= mask.Attrib
	}
	return m
}

// Close stops the watcher; a blocked Next returns KindEnd.
func (n *Fsnotify) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.watcher.Close()
}
