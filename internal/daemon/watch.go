package daemon

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/mask"
	"github.com/containercopier/container-copier/internal/notify"
)

// ResolvedWatch is one copyset target with every default applied.
type ResolvedWatch struct {
	// Copyset is the owning copyset name, for logs and metrics.
	Copyset string
	// Source is the absolute path that is watched and copied from.
	Source string
	// Target is the absolute path copied to.
	Target string
	// Mask is the effective event mask: the target override if present,
	// otherwise the copyset default.
	Mask mask.Mask
	// ID is assigned when the watch is registered.
	ID notify.WatchID
}

func (w *ResolvedWatch) fields() []zap.Field {
	return []zap.Field{
		zap.String("copyset", w.Copyset),
		zap.String("source", w.Source),
		zap.String("target", w.Target),
	}
}

// Copy replaces the target with the current contents of the source,
// creating missing parent directories first.
func (w *ResolvedWatch) Copy(logger *zap.Logger) error {
	logger.Info("Copying", w.fields()...)

	parent := filepath.Dir(w.Target)
	if _, err := os.Stat(parent); err != nil {
		logger.Info("Creating parent directory", append(w.fields(), zap.String("parent", parent))...)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			logger.Error("Failed to create directory",
				append(w.fields(), zap.String("parent", parent), zap.Error(err))...)
			return &CopyError{Op: OpMkdir, Source: w.Source, Target: w.Target, Err: err}
		}
	}

	written, err := copyFile(w.Source, w.Target)
	if err != nil {
		logger.Error("Failed to copy from source to target", append(w.fields(), zap.Error(err))...)
		return &CopyError{Op: OpCopy, Source: w.Source, Target: w.Target, Err: err}
	}
	logger.Debug("Copied", append(w.fields(), zap.Int64("bytes", written))...)
	return nil
}

// copyFile overwrites target in place with the bytes of source and gives
// it the source permission bits. The target inode is kept so that bind
// mounts of the target keep seeing updates.
func copyFile(source, target string) (int64, error) {
	in, err := os.Open(source)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	perm := info.Mode().Perm()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, err
	}
	return written, os.Chmod(target, perm)
}
