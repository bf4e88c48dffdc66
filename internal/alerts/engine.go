// Package alerts maintains the two alert populations — local ephemeral
// notifications and server-synchronized records — merges them into one
// ordered view, and drives per-alert expiry timers. Emergency alerts never
// auto-expire, whatever duration the caller asked for.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/observability"
	"github.com/example/ride-companion/internal/sched"
)

const (
	DefaultTTL          = 5 * time.Second
	DefaultSyncInterval = 10 * time.Second
)

// Sender is the backend surface the engine writes through and syncs from.
// *transport.Client satisfies it.
type Sender interface {
	CreateAlert(ctx context.Context, rideID string, category models.AlertCategory, severity models.AlertSeverity, message string) (models.Alert, error)
	CreateEmergencyAlert(ctx context.Context, rideID, message string) (models.Alert, error)
	ListAlerts(ctx context.Context, rideID string) ([]models.Alert, error)
}

// Engine owns the visible alert set. All mutation goes through its API;
// Alerts() hands out copies only.
type Engine struct {
	backend      Sender // nil for a local-only engine
	clk          clock.Clock
	logger       *slog.Logger
	defaultTTL   time.Duration
	syncInterval time.Duration

	mu     sync.Mutex
	rideID string
	local  []models.Alert // creation order
	server []models.Alert // server-provided order, replaced wholesale
	timers map[string]*clock.Timer
	subs   []func(models.Alert)
	task   *sched.Task
	cancel context.CancelFunc
}

// Config wires an Engine; zero durations fall back to the defaults above.
type Config struct {
	Backend      Sender
	Clock        clock.Clock
	Logger       *slog.Logger
	DefaultTTL   time.Duration
	SyncInterval time.Duration
}

func NewEngine(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	return &Engine{
		backend:      cfg.Backend,
		clk:          cfg.Clock,
		logger:       cfg.Logger,
		defaultTTL:   cfg.DefaultTTL,
		syncInterval: cfg.SyncInterval,
		timers:       make(map[string]*clock.Timer),
	}
}

// SetRide points the domain senders at a ride without starting server sync.
func (e *Engine) SetRide(rideID string) {
	e.mu.Lock()
	e.rideID = rideID
	e.mu.Unlock()
}

// Subscribe registers fn to be called for every newly visible local alert.
func (e *Engine) Subscribe(fn func(models.Alert)) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// Push adds a local alert with the engine's default duration.
func (e *Engine) Push(category models.AlertCategory, message string) models.Alert {
	return e.PushTTL(category, message, e.defaultTTL)
}

// PushTTL adds a local alert that auto-expires after ttl; ttl == 0 disables
// expiry. Emergency alerts are always forced to ttl 0.
func (e *Engine) PushTTL(category models.AlertCategory, message string, ttl time.Duration) models.Alert {
	if category == models.AlertEmergency {
		ttl = 0
	}
	a := models.Alert{
		ID:           uuid.NewString(),
		Message:      message,
		Category:     category,
		CreatedAt:    e.clk.Now(),
		ExpiresAfter: ttl,
		Origin:       models.OriginLocal,
	}

	e.mu.Lock()
	e.local = append(e.local, a)
	if ttl > 0 {
		id := a.ID
		e.timers[id] = e.clk.AfterFunc(ttl, func() { e.expire(id) })
	}
	subs := make([]func(models.Alert), len(e.subs))
	copy(subs, e.subs)
	e.updateGaugeLocked()
	e.mu.Unlock()

	for _, fn := range subs {
		fn(a)
	}
	return a
}

// Dismiss removes an alert immediately, canceling any pending expiry timer.
// Dismissing an unknown or already-expired id is a no-op.
func (e *Engine) Dismiss(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tm, ok := e.timers[id]; ok {
		tm.Stop()
		delete(e.timers, id)
	}
	e.local = removeByID(e.local, id)
	e.server = removeByID(e.server, id)
	e.updateGaugeLocked()
}

// expire is the timer callback; by the time it fires the alert may already
// have been dismissed, which makes this a no-op.
func (e *Engine) expire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.timers, id)
	e.local = removeByID(e.local, id)
	e.updateGaugeLocked()
}

// Alerts returns the merged visible set: local alerts in creation order,
// then server alerts in server order.
func (e *Engine) Alerts() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Alert, 0, len(e.local)+len(e.server))
	out = append(out, e.local...)
	out = append(out, e.server...)
	return out
}

// StartSync begins mirroring the ride's server-side alert list on a fixed
// cadence, replacing the cached server view wholesale on every success.
func (e *Engine) StartSync(rideID string) {
	if e.backend == nil {
		return
	}
	e.mu.Lock()
	if e.task != nil {
		e.mu.Unlock()
		return
	}
	e.rideID = rideID
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.task = sched.Every(ctx, e.clk, e.syncInterval, true, func(ctx context.Context) {
		e.syncOnce(ctx, rideID)
	})
	e.mu.Unlock()
}

// StopSync cancels the sync interval; the cached server view stays visible.
func (e *Engine) StopSync() {
	e.mu.Lock()
	if e.task != nil {
		e.task.Stop()
		e.task = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
}

func (e *Engine) syncOnce(ctx context.Context, rideID string) {
	list, err := e.backend.ListAlerts(ctx, rideID)
	if err != nil {
		e.logger.Warn("alert sync failed", "ride_id", rideID, "error", err)
		return
	}
	for i := range list {
		list[i].Origin = models.OriginServer
	}
	e.mu.Lock()
	e.server = list
	e.updateGaugeLocked()
	e.mu.Unlock()
}

// SendServerAlert pushes an alert record to the backend. On acceptance a
// local echo is enqueued (emergency-mapped categories as emergency, all
// others as info); on rejection or network failure a local error alert is
// enqueued instead. Failures never escape this method.
func (e *Engine) SendServerAlert(ctx context.Context, message string, category models.AlertCategory, severity models.AlertSeverity) {
	e.mu.Lock()
	rideID := e.rideID
	e.mu.Unlock()
	if e.backend == nil || rideID == "" {
		e.Push(models.AlertError, "Alert not sent: no active ride.")
		return
	}

	if _, err := e.backend.CreateAlert(ctx, rideID, category, severity, message); err != nil {
		e.logger.Warn("create alert failed", "ride_id", rideID, "error", err)
		e.Push(models.AlertError, "Alert could not be delivered: "+err.Error())
		return
	}
	if category == models.AlertEmergency {
		e.PushTTL(models.AlertEmergency, message, 0)
		return
	}
	e.Push(models.AlertInfo, message)
}

// SendEmergencyAlert is the distinguished emergency path: always critical
// severity and emergency category server-side, and on success a
// non-expiring local alert marked as an emergency.
func (e *Engine) SendEmergencyAlert(ctx context.Context, message string) {
	e.mu.Lock()
	rideID := e.rideID
	e.mu.Unlock()
	if e.backend == nil || rideID == "" {
		e.Push(models.AlertError, "Emergency alert not sent: no active ride.")
		return
	}

	if _, err := e.backend.CreateEmergencyAlert(ctx, rideID, message); err != nil {
		e.logger.Error("emergency alert failed", "ride_id", rideID, "error", err)
		e.Push(models.AlertError, "Emergency alert could not be delivered: "+err.Error())
		return
	}
	e.PushTTL(models.AlertEmergency, "EMERGENCY: "+message, 0)
}

func (e *Engine) updateGaugeLocked() {
	observability.AlertsActive.Set(float64(len(e.local) + len(e.server)))
}

func removeByID(list []models.Alert, id string) []models.Alert {
	for i, a := range list {
		if a.ID == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
