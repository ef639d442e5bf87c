package application

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

// LockSubmitter accepts lock requests without waiting for them to complete.
type LockSubmitter interface {
	Submit(id domain.ControllerID) error
}

const (
	DefaultLockWorkers   = 2
	DefaultLockQueueSize = 16
)

type LockDispatcherConfig struct {
	Workers   int
	QueueSize int
	// RatePerSecond caps outbound lock notifications. Zero means unlimited.
	RatePerSecond float64
	Burst         int
}

// LockDispatcher drains a bounded queue of lock requests with a fixed worker
// pool. Submissions never block: a full queue is reported to the caller and
// nothing is retried. Requests still queued or in flight when the run context
// ends are abandoned.
type LockDispatcher struct {
	notifier ports.LockNotifier
	device   domain.Device
	clock    ports.Clock
	logger   *slog.Logger
	limiter  *rate.Limiter
	workers  int
	queue    chan domain.LockRequest

	mu      sync.Mutex
	closed  bool
	entropy io.Reader

	wg sync.WaitGroup
}

var _ LockSubmitter = (*LockDispatcher)(nil)

func NewLockDispatcher(notifier ports.LockNotifier, device domain.Device, clock ports.Clock, cfg LockDispatcherConfig, logger *slog.Logger) *LockDispatcher {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultLockWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultLockQueueSize
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = workers
	}

	now := clock.Now()
	return &LockDispatcher{
		notifier: notifier,
		device:   device,
		clock:    clock,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, burst),
		workers:  workers,
		queue:    make(chan domain.LockRequest, queueSize),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (d *LockDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Stop rejects further submissions and waits for the workers to exit. The
// context passed to Start must be cancelled for Stop to return.
func (d *LockDispatcher) Stop() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *LockDispatcher) Submit(id domain.ControllerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return domain.ErrDispatcherClosed
	}

	req := domain.LockRequest{
		RequestID:    d.newRequestIDLocked(),
		ControllerID: id,
		DeviceLabel:  d.device.Label,
		DeviceID:     d.device.ID,
	}

	select {
	case d.queue <- req:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Pending returns the number of queued, not yet picked up requests.
func (d *LockDispatcher) Pending() int {
	return len(d.queue)
}

func (d *LockDispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.send(ctx, req)
		}
	}
}

func (d *LockDispatcher) send(ctx context.Context, req domain.LockRequest) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("lock request abandoned", "controller", req.ControllerID, "request_id", req.RequestID, "error", err)
		return
	}

	started := d.clock.Now()
	if err := d.notifier.Lock(ctx, req); err != nil {
		d.logger.Error("lock request failed",
			"controller", req.ControllerID,
			"request_id", req.RequestID,
			"error", err,
		)
		return
	}

	d.logger.Info("machine locked",
		"controller", req.ControllerID,
		"request_id", req.RequestID,
		"duration", d.clock.Now().Sub(started),
	)
}

func (d *LockDispatcher) newRequestIDLocked() string {
	t := d.clock.Now()
	return ulid.MustNew(ulid.Timestamp(t), d.entropy).String()
}
