package daemon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/logging"
	"github.com/containercopier/container-copier/internal/metrics"
	"github.com/containercopier/container-copier/internal/notify"
)

// dispatch consumes the notification stream until it ends or fails.
// A nil return means the stream ended cleanly.
func (d *Daemon) dispatch(table *WatchTable) error {
	d.logger.Info("Processing notification events", zap.Int("watches", table.Len()))

	for {
		item := d.notifier.Next()
		switch item.Kind {
		case notify.KindEnd:
			d.logger.Info("Notification stream ended")
			return nil
		case notify.KindError:
			d.logger.Error("Notification stream failed", zap.Error(item.Err))
			return fmt.Errorf("%w: %w", ErrStream, item.Err)
		case notify.KindEvent:
			if err := d.handle(table, item.Event); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unexpected item %v", ErrStream, item.Kind)
		}
	}
}

// handle copies every target on the event's watch whose mask matches.
func (d *Daemon) handle(table *WatchTable, ev notify.Event) error {
	logging.Trace(d.logger, "Event",
		zap.Int("wd", int(ev.WatchID)),
		zap.Stringer("mask", ev.Mask),
		zap.String("name", ev.Name))

	watches := table.Lookup(ev.WatchID)
	if len(watches) == 0 {
		d.logger.Warn("Unknown watch descriptor", zap.Int("wd", int(ev.WatchID)))
		d.metrics.Event(metrics.EventUnknown)
		d.observer.UnknownWatch(ev.WatchID)
		return nil
	}

	// A removed watch means the source inode is gone, typically replaced
	// by a rename. Its replacement is copied when there is one.
	selected := func(w *ResolvedWatch) bool { return w.Mask.Matches(ev.Mask) }
	if ev.Removed {
		d.logger.Info("Watch removed by the notifier", zap.Int("wd", int(ev.WatchID)))
		selected = func(w *ResolvedWatch) bool {
			if sourceIsFile(w.Source) {
				return true
			}
			d.logger.Info("Source is gone; not copying", w.fields()...)
			return false
		}
	}

	copied := false
	for _, w := range watches {
		if !selected(w) {
			continue
		}
		if err := w.Copy(d.logger); err != nil {
			d.recordCopyFailure(w, err)
			return err
		}
		d.metrics.Copied(w.Copyset, metrics.PhaseEvent)
		d.observer.Copied(w, metrics.PhaseEvent)
		copied = true
	}

	if copied {
		d.metrics.Event(metrics.EventCopied)
	} else {
		d.metrics.Event(metrics.EventIgnored)
	}
	return nil
}
