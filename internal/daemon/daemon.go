package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"foreman/internal/api"
	"foreman/internal/broadcast"
	"foreman/internal/config"
	"foreman/internal/coordinator"
	"foreman/internal/logging"
	"foreman/internal/notifications"
	"foreman/internal/queue"
	"foreman/internal/tracker"
	"foreman/internal/workflowstatus"
)

// Daemon owns the background coordinator, the broadcast hub, and the HTTP API,
// and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store

	coordinator *coordinator.Coordinator
	hub         *broadcast.Hub
	queueSvc    *api.QueueService
	actions     *api.QueueActions
	server      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New wires a daemon from configuration and an open queue store.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	queueSvc := api.NewQueueService(store)
	hub := broadcast.New(queueSvc.Snapshot, cfg.Broadcast.ObserverBuffer, logger)
	coord := coordinator.New(
		cfg,
		store,
		tracker.New(store, logger),
		workflowstatus.NewFromConfig(cfg),
		notifications.NewService(cfg),
		hub,
		queueSvc,
		logger,
	)

	lockPath := filepath.Join(cfg.Paths.LogDir, "foremand.lock")
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		coordinator: coord,
		hub:         hub,
		queueSvc:    queueSvc,
		actions:     api.NewQueueActions(store),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock, launches the coordinator, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another foreman daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.coordinator.Start(d.ctx)

	if d.server != nil {
		if err := d.server.start(d.ctx); err != nil {
			d.coordinator.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("foreman daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.coordinator.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("foreman daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the bound API address, empty until Start succeeds.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	stats, err := d.queueSvc.Stats(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}

	lastTick, lastErr := d.coordinator.LastTick()
	coordStatus := api.CoordinatorStatus{
		Running:  d.coordinator.Running(),
		LastTick: api.FormatTime(lastTick),
	}
	if lastErr != nil {
		coordStatus.LastError = lastErr.Error()
	}

	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Coordinator:  coordStatus,
		QueueStats:   stats,
		Observers:    d.hub.ObserverCount(),
	}, nil
}

// publishState pushes the current aggregate queue state to observers after a
// mutation made outside the coordinator.
func (d *Daemon) publishState(ctx context.Context) {
	state, err := d.queueSvc.Snapshot(ctx)
	if err != nil {
		d.logger.Error("snapshot queue state", logging.Error(err))
		return
	}
	d.hub.Publish(state)
}
