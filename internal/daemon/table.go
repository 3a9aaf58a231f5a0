package daemon

import (
	"sort"

	"github.com/containercopier/container-copier/internal/notify"
)

// WatchTable maps watch ids to the targets registered under them. It is
// filled during setup and only read afterwards.
//
// Several targets may share one id when they watch the same source.
type WatchTable struct {
	entries map[notify.WatchID][]*ResolvedWatch
	count   int
}

// NewWatchTable returns an empty table.
func NewWatchTable() *WatchTable {
	return &WatchTable{entries: make(map[notify.WatchID][]*ResolvedWatch)}
}

// Insert appends w under its id.
func (t *WatchTable) Insert(w *ResolvedWatch) {
	t.entries[w.ID] = append(t.entries[w.ID], w)
	t.count++
}

// Lookup returns the targets registered under id, in registration order.
func (t *WatchTable) Lookup(id notify.WatchID) []*ResolvedWatch {
	return t.entries[id]
}

// Len returns the number of registered targets.
func (t *WatchTable) Len() int {
	return t.count
}

// IDs returns the distinct watch ids, sorted.
func (t *WatchTable) IDs() []notify.WatchID {
	ids := make([]notify.WatchID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
