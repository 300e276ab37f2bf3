package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"foreman/internal/config"
	"foreman/internal/logging"
	"foreman/internal/notifications"
	"foreman/internal/queue"
	"foreman/internal/tracker"
	"foreman/internal/workflowstatus"
)

// Snapshotter produces the serialized aggregate queue state published after
// every state change.
type Snapshotter interface {
	Snapshot(ctx context.Context) (json.RawMessage, error)
}

// Publisher receives the aggregate state after the coordinator mutates the
// queue. The broadcast hub satisfies this.
type Publisher interface {
	Publish(state json.RawMessage) bool
}

// Coordinator polls running phases against the external status source and
// advances each parent's chain through the tracker. One goroutine owns the
// poll loop; Start and Stop are safe to call from any goroutine.
type Coordinator struct {
	store     *queue.Store
	tracker   *tracker.Tracker
	source    workflowstatus.Source
	notifier  notifications.Service
	publisher Publisher
	snapshot  Snapshotter
	logger    *slog.Logger

	pollInterval time.Duration
	checkTimeout time.Duration
	errorRetry   time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastTick time.Time
	lastErr  error
}

// New wires a coordinator from its collaborators. Intervals come from the
// workflow section of the configuration.
func New(
	cfg *config.Config,
	store *queue.Store,
	trk *tracker.Tracker,
	source workflowstatus.Source,
	notifier notifications.Service,
	publisher Publisher,
	snapshot Snapshotter,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		store:        store,
		tracker:      trk,
		source:       source,
		notifier:     notifier,
		publisher:    publisher,
		snapshot:     snapshot,
		logger:       logging.NewComponentLogger(logger, "coordinator"),
		pollInterval: secondsOrDefault(cfg.Workflow.QueuePollInterval, 10*time.Second),
		checkTimeout: secondsOrDefault(cfg.Workflow.StatusCheckTimeout, 5*time.Second),
		errorRetry:   secondsOrDefault(cfg.Workflow.ErrorRetryInterval, 5*time.Second),
	}
}

func secondsOrDefault(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

// Start launches the poll loop. Starting an already-running coordinator is a
// no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.run(loopCtx)
	c.logger.Info("coordinator started",
		logging.Duration("poll_interval", c.pollInterval),
		logging.Duration("status_check_timeout", c.checkTimeout),
	)
}

// Stop cancels the poll loop and waits for the in-flight tick to finish.
// Stopping a stopped coordinator is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.logger.Info("coordinator stopped")
}

// Running reports whether the poll loop is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastTick returns when the most recent poll tick finished and the error it
// produced, if any.
func (c *Coordinator) LastTick() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTick, c.lastErr
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		err := c.Tick(ctx)

		c.mu.Lock()
		c.lastTick = time.Now()
		c.lastErr = err
		c.mu.Unlock()

		wait := c.pollInterval
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("poll tick failed", logging.Error(err))
			wait = c.errorRetry
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Tick runs one poll pass: every running phase is checked against the status
// source and reconciled. A failure while reconciling one phase never prevents
// the remaining phases from being checked in the same pass.
func (c *Coordinator) Tick(ctx context.Context) error {
	phases, err := c.store.Running(ctx)
	if err != nil {
		return fmt.Errorf("list running phases: %w", err)
	}

	var firstErr error
	for _, phase := range phases {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.reconcile(ctx, phase); err != nil {
			c.logger.Error("reconcile phase",
				logging.Int64(logging.FieldQueueID, phase.ID),
				logging.String(logging.FieldParentID, phase.ParentID),
				logging.Int(logging.FieldPhaseNumber, phase.PhaseNumber),
				logging.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Coordinator) reconcile(ctx context.Context, phase *queue.Phase) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reconciling phase %d: %v", phase.ID, r)
		}
	}()

	ref := strings.TrimSpace(phase.ExternalRef)
	if ref == "" {
		// Running without a ref means the external work item was never
		// recorded; nothing to check yet.
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	outcome, err := c.source.Status(checkCtx, ref)
	cancel()
	if err != nil {
		if errors.Is(err, workflowstatus.ErrUnavailable) {
			c.logger.Debug("status source unavailable, retrying next tick",
				logging.Int64(logging.FieldQueueID, phase.ID),
				logging.String(logging.FieldExternalRef, ref),
			)
			return nil
		}
		return fmt.Errorf("check status of %s: %w", ref, err)
	}

	switch outcome.State {
	case workflowstatus.StateCompleted:
		return c.handleCompleted(ctx, phase)
	case workflowstatus.StateFailed:
		return c.handleFailed(ctx, phase, outcome.ErrorMessage)
	default:
		// Still running, or the source has no record yet. Leave the phase
		// untouched and check again on the next tick.
		return nil
	}
}

func (c *Coordinator) handleCompleted(ctx context.Context, phase *queue.Phase) error {
	nextID, err := c.tracker.OnCompleted(ctx, phase.ID)
	if err != nil {
		return err
	}

	c.publishState(ctx)

	message := fmt.Sprintf("Phase %d complete. All phases for %s finished.", phase.PhaseNumber, phase.ParentID)
	if nextID != 0 {
		if next, err := c.store.GetByID(ctx, nextID); err == nil && next != nil {
			message = fmt.Sprintf("Phase %d complete. Phase %d is ready to start.", phase.PhaseNumber, next.PhaseNumber)
		}
	}
	if err := c.notifier.PhaseCompleted(ctx, phase.ParentID, phase.PhaseNumber, phase.ExternalRef, message); err != nil {
		c.logger.Warn("completion notification failed",
			logging.Int64(logging.FieldQueueID, phase.ID),
			logging.Error(err),
		)
	}
	return nil
}

func (c *Coordinator) handleFailed(ctx context.Context, phase *queue.Phase, errorMessage string) error {
	blocked, err := c.tracker.OnFailed(ctx, phase.ID, errorMessage)
	if err != nil {
		return err
	}

	c.publishState(ctx)

	message := fmt.Sprintf("Phase %d failed: %s", phase.PhaseNumber, errorMessage)
	if len(blocked) > 0 {
		message = fmt.Sprintf("%s (%d downstream phases blocked)", message, len(blocked))
	}
	if err := c.notifier.PhaseFailed(ctx, phase.ParentID, phase.PhaseNumber, phase.ExternalRef, message); err != nil {
		c.logger.Warn("failure notification failed",
			logging.Int64(logging.FieldQueueID, phase.ID),
			logging.Error(err),
		)
	}
	return nil
}

// MarkStarted records that an external work item was launched for a ready
// phase: the external ref is stored and the phase transitions to running.
func (c *Coordinator) MarkStarted(ctx context.Context, id int64, externalRef string) (*queue.Phase, error) {
	phase, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, fmt.Errorf("%w: id %d", queue.ErrNotFound, id)
	}
	if phase.Status != queue.StatusReady {
		return nil, fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, phase.Status, queue.StatusRunning)
	}

	if ref := strings.TrimSpace(externalRef); ref != "" {
		if err := c.store.AssignExternalRef(ctx, id, ref); err != nil {
			return nil, err
		}
	}
	if err := c.store.UpdateStatus(ctx, id, queue.StatusRunning, ""); err != nil {
		return nil, err
	}

	c.logger.Info("phase started",
		logging.Int64(logging.FieldQueueID, id),
		logging.String(logging.FieldParentID, phase.ParentID),
		logging.Int(logging.FieldPhaseNumber, phase.PhaseNumber),
		logging.String(logging.FieldExternalRef, externalRef),
	)
	c.publishState(ctx)
	return c.store.GetByID(ctx, id)
}

func (c *Coordinator) publishState(ctx context.Context) {
	if c.publisher == nil || c.snapshot == nil {
		return
	}
	state, err := c.snapshot.Snapshot(ctx)
	if err != nil {
		c.logger.Error("snapshot queue state", logging.Error(err))
		return
	}
	c.publisher.Publish(state)
}
