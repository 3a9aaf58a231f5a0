package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/metrics"
	"github.com/containercopier/container-copier/internal/notify"
)

// Options holds optional collaborators for the daemon.
type Options struct {
	// Logger for daemon activity. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics records watch and copy activity. May be nil.
	Metrics *metrics.Collector

	// Observer is told about copies as they happen. May be nil.
	Observer Observer
}

// Daemon registers the configured watches and mirrors files on change.
type Daemon struct {
	cfg      *config.Config
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics.Collector
	observer Observer

	table *WatchTable

	stopOnce sync.Once
}

// New creates a Daemon for cfg. The notifier is owned by the daemon from
// here on and is closed by Stop.
//
// Use Start to run setup and dispatch, or call Setup and Run separately.
func New(cfg *config.Config, notifier notify.Notifier, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Daemon{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		metrics:  opts.Metrics,
		observer: observer,
	}, nil
}

// Setup resolves every copyset in order, performs initial copies and
// registers the watches. On failure no table is kept and the daemon
// cannot run.
func (d *Daemon) Setup() error {
	d.logger.Info("Setting up watches", zap.Int("copysets", len(d.cfg.Copysets)))
	start := time.Now()

	table := NewWatchTable()
	for _, set := range d.cfg.Copysets {
		if err := d.addCopyset(set, table); err != nil {
			return err
		}
	}
	d.table = table
	d.metrics.Registered(table.Len(), len(table.IDs()))

	elapsed := time.Since(start)
	d.logger.Info("Watches registered",
		zap.Int("targets", table.Len()),
		zap.Int("watches", len(table.IDs())),
		zap.Duration("elapsed", elapsed))
	d.observer.SetupComplete(table.Len(), len(table.IDs()), elapsed)
	return nil
}

// Run dispatches notification events until the stream ends, a fatal error
// occurs or ctx is cancelled. Cancellation closes the notifier, which ends
// the stream, so Run then returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if d.table == nil {
		return ErrNotSetUp
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutdown signal received")
			_ = d.Stop()
		case <-done:
		}
	}()

	return d.dispatch(d.table)
}

// Start runs Setup followed by Run. It blocks until the daemon stops.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("Starting daemon")
	if err := d.Setup(); err != nil {
		return err
	}
	return d.Run(ctx)
}

// Stop closes the notifier. It is safe to call more than once.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.logger.Debug("Closing notifier")
		if closeErr := d.notifier.Close(); closeErr != nil && !errors.Is(closeErr, notify.ErrClosed) {
			err = closeErr
		}
	})
	return err
}

// Table returns the watch table built by Setup, or nil before setup.
func (d *Daemon) Table() *WatchTable {
	return d.table
}
