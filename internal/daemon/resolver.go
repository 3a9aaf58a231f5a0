package daemon

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/metrics"
)

// Resolve composes the absolute paths and effective mask of every target
// in set, in configuration order.
func Resolve(set config.Copyset) ([]*ResolvedWatch, error) {
	def, err := set.Mask()
	if err != nil {
		return nil, err
	}
	watches := make([]*ResolvedWatch, 0, len(set.Targets))
	for _, target := range set.Targets {
		m, err := target.Events.Mask(def)
		if err != nil {
			return nil, err
		}
		watches = append(watches, &ResolvedWatch{
			Copyset: set.Name,
			Source:  filepath.Join(set.Source, target.Source),
			Target:  filepath.Join(set.Target, target.RelativeTarget()),
			Mask:    m,
		})
	}
	return watches, nil
}

// Step is one planned watch registration.
type Step struct {
	Watch *ResolvedWatch
	// InitialCopy is set when setup would copy before registering.
	InitialCopy bool
}

// Plan resolves cfg and reports which targets would get an initial copy,
// without copying or registering anything.
func Plan(cfg *config.Config, logger *zap.Logger) ([]Step, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var steps []Step
	for _, set := range cfg.Copysets {
		watches, err := Resolve(set)
		if err != nil {
			return nil, &SetupError{Copyset: set.Name, Source: set.Source, Err: err}
		}
		for _, w := range watches {
			steps = append(steps, Step{Watch: w, InitialCopy: needsInitialCopy(w, logger)})
		}
	}
	return steps, nil
}

// needsInitialCopy reports whether the source is a regular file and the
// target is missing. A target whose existence cannot be determined is
// treated as missing.
func needsInitialCopy(w *ResolvedWatch, logger *zap.Logger) bool {
	return sourceIsFile(w.Source) && !targetExists(w, logger)
}

func sourceIsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func targetExists(w *ResolvedWatch, logger *zap.Logger) bool {
	_, err := os.Stat(w.Target)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Error("Failed to check if target exists; treating it as missing",
			append(w.fields(), zap.Error(err))...)
	}
	return false
}

// addCopyset resolves set, performs initial copies and registers each
// watch, in target order. The first failure aborts.
func (d *Daemon) addCopyset(set config.Copyset, table *WatchTable) error {
	d.logger.Info("Adding watch for copyset",
		zap.String("copyset", set.Name),
		zap.String("source", set.Source),
		zap.String("target", set.Target))

	watches, err := Resolve(set)
	if err != nil {
		return &SetupError{Copyset: set.Name, Source: set.Source, Err: err}
	}

	for _, w := range watches {
		d.logger.Debug("Resolved target", append(w.fields(), zap.Stringer("mask", w.Mask))...)

		if needsInitialCopy(w, d.logger) {
			d.logger.Info("Target does not exist; copying", w.fields()...)
			if err := w.Copy(d.logger); err != nil {
				d.recordCopyFailure(w, err)
				return &SetupError{Copyset: set.Name, Source: w.Source, Err: err}
			}
			d.metrics.Copied(w.Copyset, metrics.PhaseInitial)
			d.observer.Copied(w, metrics.PhaseInitial)
		}

		if w.Mask.RetriggersOnRead() {
			d.logger.Warn("Events include reads of the source; each copy will trigger another copy",
				append(w.fields(), zap.Stringer("mask", w.Mask))...)
		}

		id, err := d.notifier.Add(w.Source, w.Mask)
		if err != nil {
			d.logger.Error("Failed to add watch", append(w.fields(), zap.Error(err))...)
			return &SetupError{Copyset: set.Name, Source: w.Source, Err: err}
		}
		w.ID = id
		table.Insert(w)
		d.logger.Debug("Watch registered", append(w.fields(), zap.Int("wd", int(id)))...)
	}
	return nil
}

func (d *Daemon) recordCopyFailure(w *ResolvedWatch, err error) {
	op := OpCopy
	var copyErr *CopyError
	if errors.As(err, &copyErr) {
		op = copyErr.Op
	}
	d.metrics.CopyFailed(w.Copyset, op)
	d.observer.CopyFailed(w, err)
}
