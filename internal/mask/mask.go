// Package mask models the set of filesystem event kinds a watch reacts to.
//
// Bit values follow the Linux inotify ABI so a Mask can be handed to
// inotify_add_watch unchanged. Other notification backends translate
// their own event kinds into these bits.
package mask

import (
	"fmt"
	"sort"
	"strings"
)

// Mask is a union of event kinds and watch-registration modifiers.
type Mask uint32

// Event kinds.
const (
	Access       Mask = 0x00000001
	Modify       Mask = 0x00000002
	Attrib       Mask = 0x00000004
	CloseWrite   Mask = 0x00000008
	CloseNoWrite Mask = 0x00000010
	Open         Mask = 0x00000020
	MovedFrom    Mask = 0x00000040
	MovedTo      Mask = 0x00000080
	Create       Mask = 0x00000100
	Delete       Mask = 0x00000200
	DeleteSelf   Mask = 0x00000400
	MoveSelf     Mask = 0x00000800
)

// Registration modifiers. They shape how a watch is armed and are never
// reported as events.
const (
	DontFollow Mask = 0x02000000
	ExclUnlink Mask = 0x04000000
	Oneshot    Mask = 0x80000000
)

// All selects every event kind.
const All = Access | Modify | Attrib | CloseWrite | CloseNoWrite | Open |
	MovedFrom | MovedTo | Create | Delete | DeleteSelf | MoveSelf

// Compound aliases.
const (
	Move  = MovedFrom | MovedTo | MoveSelf
	Close = CloseWrite | CloseNoWrite

	// Events selects only the event-kind bits of a mask.
	Events = All
	// Modifiers selects only the registration-modifier bits of a mask.
	Modifiers = DontFollow | ExclUnlink | Oneshot

	// Read selects the kinds a plain read of the watched file reports.
	Read = Access | Open | CloseNoWrite
)

var names = map[string]Mask{
	"ACCESS":        Access,
	"ATTRIB":        Attrib,
	"CLOSE_WRITE":   CloseWrite,
	"CLOSE_NOWRITE": CloseNoWrite,
	"CREATE":        Create,
	"DELETE":        Delete,
	"DELETE_SELF":   DeleteSelf,
	"MODIFY":        Modify,
	"MOVE_SELF":     MoveSelf,
	"MOVED_FROM":    MovedFrom,
	"MOVED_TO":      MovedTo,
	"OPEN":          Open,
	"ALL":           All,
	"MOVE":          Move,
	"CLOSE":         Close,
	"DONT_FOLLOW":   DontFollow,
	"EXCL_UNLINK":   ExclUnlink,
	"ONESHOT":       Oneshot,
}

// single lists the non-compound names in bit order, used by String.
var single = []struct {
	name string
	bit  Mask
}{
	{"ACCESS", Access},
	{"MODIFY", Modify},
	{"ATTRIB", Attrib},
	{"CLOSE_WRITE", CloseWrite},
	{"CLOSE_NOWRITE", CloseNoWrite},
	{"OPEN", Open},
	{"MOVED_FROM", MovedFrom},
	{"MOVED_TO", MovedTo},
	{"CREATE", Create},
	{"DELETE", Delete},
	{"DELETE_SELF", DeleteSelf},
	{"MOVE_SELF", MoveSelf},
	{"DONT_FOLLOW", DontFollow},
	{"EXCL_UNLINK", ExclUnlink},
	{"ONESHOT", Oneshot},
}

// UnknownEventError is returned when an event name is not recognised.
type UnknownEventError struct {
	Name string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

// Default returns the mask used when a copyset names no events.
func Default() Mask {
	return Create | Delete | Modify
}

// Union combines masks. The result does not depend on argument order.
func Union(masks ...Mask) Mask {
	var m Mask
	for _, each := range masks {
		m |= each
	}
	return m
}

// Lookup resolves a single event name. Names are matched exactly.
func Lookup(name string) (Mask, error) {
	m, ok := names[name]
	if !ok {
		return 0, &UnknownEventError{Name: name}
	}
	return m, nil
}

// Parse resolves a list of event names into their union.
func Parse(list []string) (Mask, error) {
	var m Mask
	for _, name := range list {
		bit, err := Lookup(name)
		if err != nil {
			return 0, err
		}
		m |= bit
	}
	return m, nil
}

// Names returns every recognised event name, sorted.
func Names() []string {
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any bit of other is set in m.
func (m Mask) Has(other Mask) bool {
	return m&other != 0
}

// Kinds strips registration modifiers and any unknown bits.
func (m Mask) Kinds() Mask {
	return m & Events
}

// RetriggersOnRead reports whether a read of the watched file raises an
// event m reacts to. Copying reads the source, so such a watch keeps
// copying after its first event unless it is ONESHOT.
func (m Mask) RetriggersOnRead() bool {
	return m.Has(Read) && !m.Has(Oneshot)
}

// Matches reports whether an event carrying the bits in event should
// trigger a watch armed with m.
func (m Mask) Matches(event Mask) bool {
	return m.Kinds()&event.Kinds() != 0
}

// List returns the individual names set in m, in bit order.
func (m Mask) List() []string {
	var out []string
	for _, entry := range single {
		if m&entry.bit != 0 {
			out = append(out, entry.name)
		}
	}
	return out
}

func (m Mask) String() string {
	if m == 0 {
		return "0"
	}
	parts := m.List()
	if rest := m &^ (All | Modifiers); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}
