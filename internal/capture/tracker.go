// Package capture acquires the device's own position and keeps the backend
// copy fresh: every accepted sample is uploaded immediately, and the latest
// sample is re-uploaded on a fixed cadence so stationary riders do not go
// stale server-side.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/observability"
	"github.com/example/ride-companion/internal/sched"
)

const (
	DefaultUploadInterval = 5 * time.Second
	DefaultFixTimeout     = 10 * time.Second
)

// Source supplies device position fixes.
type Source interface {
	// Current returns a single fix, honoring ctx cancellation.
	Current(ctx context.Context) (models.PositionSample, error)
	// Watch registers fn for continuous fixes until the returned cancel
	// func is called.
	Watch(fn func(models.PositionSample)) (cancel func(), err error)
}

// Uploader pushes the caller's position to the backend.
type Uploader interface {
	UpdatePosition(ctx context.Context, rideID string, lat, lon float64) error
}

// Publisher mirrors accepted samples onto the position stream. Publishing is
// best-effort and never affects tracking.
type Publisher interface {
	PublishPosition(ctx context.Context, u models.PositionUpdate) error
}

// Config wires a Tracker. Source may be nil when the runtime has no
// positioning capability; StartTracking then fails with ErrUnsupported.
type Config struct {
	Source         Source
	Uploader       Uploader
	Publisher      Publisher // optional
	Clock          clock.Clock
	Logger         *slog.Logger
	MemberID       string
	RideID         string
	UploadInterval time.Duration
	FixTimeout     time.Duration
}

// Tracker owns the device's own position: the continuous watch, the
// periodic re-upload timer, and the last-accepted sample.
type Tracker struct {
	source     Source
	uploader   Uploader
	publisher  Publisher
	clk        clock.Clock
	logger     *slog.Logger
	memberID   string
	rideID     string
	interval   time.Duration
	fixTimeout time.Duration

	mu          sync.Mutex
	tracking    bool
	gen         int // bumped on every start/stop so stale async results are dropped
	current     *models.PositionSample
	lastSync    time.Time
	lastErr     error
	cancelWatch func()
	cancel      context.CancelFunc
	task        *sched.Task
}

func New(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UploadInterval <= 0 {
		cfg.UploadInterval = DefaultUploadInterval
	}
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = DefaultFixTimeout
	}
	return &Tracker{
		source:     cfg.Source,
		uploader:   cfg.Uploader,
		publisher:  cfg.Publisher,
		clk:        cfg.Clock,
		logger:     cfg.Logger,
		memberID:   cfg.MemberID,
		rideID:     cfg.RideID,
		interval:   cfg.UploadInterval,
		fixTimeout: cfg.FixTimeout,
	}
}

// StartTracking requests a single immediate fix, registers the continuous
// watch, and arms the periodic re-upload timer. It is a no-op when already
// tracking.
func (t *Tracker) StartTracking() error {
	t.mu.Lock()
	if t.tracking {
		t.mu.Unlock()
		return nil
	}
	if t.source == nil {
		t.lastErr = ErrUnsupported
		t.mu.Unlock()
		return ErrUnsupported
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.tracking = true
	t.lastErr = nil
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	cancelWatch, err := t.source.Watch(func(s models.PositionSample) { t.accept(gen, s) })
	if err != nil {
		classified := Classify(err)
		t.sensorFailure(gen, classified)
		return classified
	}

	t.mu.Lock()
	if !t.tracking || t.gen != gen {
		t.mu.Unlock()
		cancelWatch()
		return nil
	}
	t.cancelWatch = cancelWatch
	t.task = sched.Every(ctx, t.clk, t.interval, false, func(ctx context.Context) {
		t.uploadCurrent(ctx, gen)
	})
	t.mu.Unlock()

	go t.immediateFix(ctx, gen)
	return nil
}

// StopTracking cancels the watch and the re-upload timer and clears all
// tracked state. An upload already in flight cannot resurrect any of it.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	if !t.tracking {
		t.mu.Unlock()
		return
	}
	t.tracking = false
	t.gen++
	t.current = nil
	t.lastSync = time.Time{}
	t.lastErr = nil
	cancelWatch := t.cancelWatch
	cancel := t.cancel
	task := t.task
	t.cancelWatch = nil
	t.cancel = nil
	t.task = nil
	t.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
	if task != nil {
		task.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// IsTracking reports whether capture is active.
func (t *Tracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracking
}

// CurrentPosition returns a copy of the latest accepted sample, or nil when
// none exists.
func (t *Tracker) CurrentPosition() *models.PositionSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	s := *t.current
	return &s
}

// LastSyncTime is the time of the most recent successful upload.
func (t *Tracker) LastSyncTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSync
}

// Err returns the most recent failure: a classified sensor error after a
// sensor failure, or a transient upload error while tracking continues.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) immediateFix(ctx context.Context, gen int) {
	fixCtx, cancel := context.WithCancel(ctx)
	timer := t.clk.AfterFunc(t.fixTimeout, cancel)
	defer timer.Stop()
	defer cancel()

	s, err := t.source.Current(fixCtx)
	if err != nil {
		if ctx.Err() != nil {
			return // stopped while waiting
		}
		t.sensorFailure(gen, Classify(err))
		return
	}
	t.accept(gen, s)
}

// accept records a sample from either the immediate fix or the watch and
// triggers an upload. An upload already in flight may be superseded.
func (t *Tracker) accept(gen int, s models.PositionSample) {
	if s.CapturedAt.IsZero() {
		s.CapturedAt = t.clk.Now()
	}
	t.mu.Lock()
	if !t.tracking || t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.current = &s
	ctx := context.Background()
	t.mu.Unlock()

	go t.upload(ctx, gen, s)
	if t.publisher != nil {
		go t.publish(s)
	}
}

func (t *Tracker) uploadCurrent(ctx context.Context, gen int) {
	t.mu.Lock()
	if !t.tracking || t.gen != gen || t.current == nil {
		t.mu.Unlock()
		return
	}
	s := *t.current
	t.mu.Unlock()
	t.upload(ctx, gen, s)
}

func (t *Tracker) upload(ctx context.Context, gen int, s models.PositionSample) {
	observability.PositionUploadsTotal.Inc()
	err := t.uploader.UpdatePosition(ctx, t.rideID, s.Lat, s.Lon)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tracking || t.gen != gen {
		return // stopped mid-flight; result discarded
	}
	if err != nil {
		observability.PositionUploadFailures.Inc()
		t.lastErr = fmt.Errorf("position upload: %w", err)
		t.logger.Warn("position upload failed", "ride_id", t.rideID, "error", err)
		return
	}
	t.lastSync = t.clk.Now()
	t.lastErr = nil
}

func (t *Tracker) publish(s models.PositionSample) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u := models.PositionUpdate{
		MemberID: t.memberID,
		RideID:   t.rideID,
		Lat:      s.Lat,
		Lon:      s.Lon,
		Accuracy: s.Accuracy,
		At:       s.CapturedAt,
	}
	if err := t.publisher.PublishPosition(ctx, u); err != nil {
		t.logger.Debug("position stream publish failed", "error", err)
	}
}

// sensorFailure stops tracking and records the classified error; the rider
// must explicitly restart.
func (t *Tracker) sensorFailure(gen int, classified error) {
	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.tracking = false
	t.gen++
	t.lastErr = classified
	cancelWatch := t.cancelWatch
	cancel := t.cancel
	task := t.task
	t.cancelWatch = nil
	t.cancel = nil
	t.task = nil
	t.mu.Unlock()

	t.logger.Error("position capture stopped", "reason", UserMessage(classified))
	if cancelWatch != nil {
		cancelWatch()
	}
	if task != nil {
		task.Stop()
	}
	if cancel != nil {
		cancel()
	}
}
