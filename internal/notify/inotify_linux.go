//go:build linux

package notify

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/containercopier/container-copier/internal/mask"
)

// BackendInotify talks to the kernel inotify API directly so every event
// kind and registration modifier is available.
const BackendInotify = "inotify"

func init() {
	Register(BackendInotify, NewInotify)
}

// Inotify is a Notifier backed by a single inotify instance.
type Inotify struct {
	// Read buffer. Must hold at least one event with a maximal name.
	buf [unix.SizeofInotifyEvent * 4096]byte

	fd   int
	file *os.File

	mu      sync.Mutex
	closed  bool
	pending []Item
}

// NewInotify creates an inotify instance. The descriptor is non-blocking
// and handed to the runtime poller, so Close interrupts a blocked Next.
func NewInotify() (Notifier, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}
	return &Inotify{
		fd:   fd,
		file: os.NewFile(uintptr(fd), "inotify"),
	}, nil
}

// Add registers path. IN_MASK_ADD is always set so that registering a
// path that is already watched widens its mask instead of replacing it.
func (n *Inotify) Add(path string, m mask.Mask) (WatchID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return 0, ErrClosed
	}

	wd, err := unix.InotifyAddWatch(n.fd, path, uint32(m)|unix.IN_MASK_ADD)
	if err != nil {
		return 0, &os.PathError{Op: "inotify_add_watch", Path: path, Err: err}
	}
	return WatchID(wd), nil
}

// Next returns the next queued item, reading from the kernel when the
// queue is empty.
func (n *Inotify) Next() Item {
	for {
		if len(n.pending) > 0 {
			item := n.pending[0]
			n.pending = n.pending[1:]
			return item
		}

		count, err := n.file.Read(n.buf[:])
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return EndItem()
			}
			return ErrorItem(fmt.Errorf("read inotify events: %w", err))
		}
		if count == 0 {
			return EndItem()
		}
		if count < unix.SizeofInotifyEvent {
			return ErrorItem(fmt.Errorf("short inotify read: %d bytes", count))
		}
		n.pending = n.parse(n.buf[:count], n.pending[:0])
	}
}

func (n *Inotify) parse(data []byte, out []Item) []Item {
	var offset int
	for offset+unix.SizeofInotifyEvent <= len(data) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&data[offset]))
		nameLen := int(raw.Len)
		start := offset + unix.SizeofInotifyEvent
		offset = start + nameLen
		if offset > len(data) {
			out = append(out, ErrorItem(fmt.Errorf("truncated inotify event")))
			break
		}

		if raw.Mask&unix.IN_Q_OVERFLOW != 0 {
			out = append(out, ErrorItem(ErrOverflow))
			continue
		}

		var name string
		if nameLen > 0 {
			name = strings.TrimRight(string(data[start:offset]), "\x00")
		}
		out = append(out, EventItem(Event{
			WatchID: WatchID(raw.Wd),
			Mask:    mask.Mask(raw.Mask),
			Name:    name,
			Removed: raw.Mask&unix.IN_IGNORED != 0,
		}))
	}
	return out
}

// Close releases the inotify descriptor. It is safe to call more than once.
func (n *Inotify) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.file.Close()
}
