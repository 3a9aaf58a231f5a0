package daemon

import (
	"time"

	"github.com/containercopier/container-copier/internal/notify"
)

// Observer is told about daemon activity as it happens. Calls are made
// from the setup or dispatch goroutine and must not block.
type Observer interface {
	SetupComplete(targets, watches int, elapsed time.Duration)
	Copied(w *ResolvedWatch, phase string)
	CopyFailed(w *ResolvedWatch, err error)
	UnknownWatch(id notify.WatchID)
}

type nopObserver struct{}

func (nopObserver) SetupComplete(int, int, time.Duration) {}
func (nopObserver) Copied(*ResolvedWatch, string)         {}
func (nopObserver) CopyFailed(*ResolvedWatch, error)      {}
func (nopObserver) UnknownWatch(notify.WatchID)           {}
