package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/containercopier/container-copier/internal/mask"
	"github.com/containercopier/container-copier/internal/notify"
)

type addCall struct {
	Path string
	Mask mask.Mask
}

// fakeNotifier is an in-memory notify.Notifier. Items are fed through
// send; Close ends the stream.
type fakeNotifier struct {
	mu     sync.Mutex
	adds   []addCall
	ids    map[string]notify.WatchID
	failOn map[string]error
	onAdd  func(path string)

	items     chan notify.Item
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		ids:    make(map[string]notify.WatchID),
		failOn: make(map[string]error),
		items:  make(chan notify.Item, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeNotifier) Add(path string, m mask.Mask) (notify.WatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onAdd != nil {
		f.onAdd(path)
	}
	if err := f.failOn[path]; err != nil {
		return 0, err
	}
	f.adds = append(f.adds, addCall{Path: path, Mask: m})
	id, ok := f.ids[path]
	if !ok {
		id = notify.WatchID(len(f.ids) + 1)
		f.ids[path] = id
	}
	return id, nil
}

func (f *fakeNotifier) Next() notify.Item {
	select {
	case item := <-f.items:
		return item
	case <-f.closed:
		return notify.EndItem()
	}
}

func (f *fakeNotifier) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeNotifier) send(items ...notify.Item) {
	for _, item := range items {
		f.items <- item
	}
}

func (f *fakeNotifier) addCalls() []addCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]addCall(nil), f.adds...)
}

func (f *fakeNotifier) idFor(t *testing.T, path string) notify.WatchID {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[path]
	require.True(t, ok, "no watch for %s", path)
	return id
}

func event(id notify.WatchID, m mask.Mask) notify.Item {
	return notify.EventItem(notify.Event{WatchID: id, Mask: m})
}

// tree holds a source and a target base directory under a temp dir.
type tree struct {
	src string
	dst string
}

func newTree(t *testing.T) tree {
	t.Helper()
	root := t.TempDir()
	tr := tree{src: filepath.Join(root, "src"), dst: filepath.Join(root, "dst")}
	require.NoError(t, os.MkdirAll(tr.src, 0o755))
	require.NoError(t, os.MkdirAll(tr.dst, 0o755))
	return tr
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// recordingObserver keeps a journal of observer calls.
type recordingObserver struct {
	mu      sync.Mutex
	journal []string
}

func (r *recordingObserver) record(entry string) {
	r.mu.Lock()
	r.journal = append(r.journal, entry)
	r.mu.Unlock()
}

func (r *recordingObserver) SetupComplete(targets, watches int, _ time.Duration) {
	r.record(fmt.Sprintf("setup %d/%d", targets, watches))
}

func (r *recordingObserver) Copied(w *ResolvedWatch, phase string) {
	r.record(fmt.Sprintf("copied %s %s", filepath.Base(w.Target), phase))
}

func (r *recordingObserver) CopyFailed(w *ResolvedWatch, _ error) {
	r.record("failed " + filepath.Base(w.Target))
}

func (r *recordingObserver) UnknownWatch(id notify.WatchID) {
	r.record(fmt.Sprintf("unknown %d", id))
}

func (r *recordingObserver) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.journal...)
}
