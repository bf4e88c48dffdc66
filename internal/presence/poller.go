// Package presence polls the backend roster for the active ride and fans
// immutable snapshots out to subscribers (anomaly detection, marker
// reconciliation, geo index). A failed poll never discards the last good
// snapshot; it only flips connectivity so the UI can show stale data with a
// disconnected indicator instead of blanking.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/observability"
	"github.com/example/ride-companion/internal/sched"
)

const DefaultInterval = 3 * time.Second

// Roster is the read path the poller needs from the backend.
type Roster interface {
	ListMembers(ctx context.Context, rideID string) ([]models.MemberPresence, error)
}

// Poller repeatedly fetches the member roster for one ride at a time.
type Poller struct {
	roster   Roster
	clk      clock.Clock
	logger   *slog.Logger
	interval time.Duration

	mu        sync.Mutex
	rideID    string
	members   []models.MemberPresence
	connected bool
	lastErr   error
	subs      []func([]models.MemberPresence)
	task      *sched.Task
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(roster Roster, c clock.Clock, logger *slog.Logger, interval time.Duration) *Poller {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{roster: roster, clk: c, logger: logger, interval: interval}
}

// Start begins polling rideID: one immediate fetch, then one per interval.
// Starting with a different ride id restarts polling from scratch and drops
// the previous ride's snapshot.
func (p *Poller) Start(rideID string) {
	p.mu.Lock()
	if p.task != nil && p.rideID == rideID {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.rideID = rideID
	p.members = nil
	p.connected = false
	p.lastErr = nil
	ctx, cancel := context.WithCancel(context.Background())
	p.ctx = ctx
	p.cancel = cancel
	p.task = sched.Every(ctx, p.clk, p.interval, true, p.fetch)
	p.mu.Unlock()

	p.logger.Info("presence polling started", "ride_id", rideID, "interval", p.interval)
}

// Stop cancels the poll interval. The last snapshot stays readable.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

func (p *Poller) stopLocked() {
	if p.task != nil {
		p.task.Stop()
		p.task = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.ctx = nil
}

// Refresh performs one out-of-band fetch without disturbing the interval's
// schedule. It is a no-op when the poller is not running.
func (p *Poller) Refresh() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		return
	}
	p.fetch(ctx)
}

// Subscribe registers fn to receive a copy of every successful snapshot.
func (p *Poller) Subscribe(fn func([]models.MemberPresence)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Snapshot returns a copy of the latest roster.
func (p *Poller) Snapshot() []models.MemberPresence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneMembers(p.members)
}

// Connected reports whether the most recent fetch succeeded.
func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Err returns the most recent fetch failure, nil after a success.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// RideID returns the ride currently being polled.
func (p *Poller) RideID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rideID
}

func (p *Poller) fetch(ctx context.Context) {
	p.mu.Lock()
	rideID := p.rideID
	p.mu.Unlock()
	if rideID == "" {
		return
	}

	observability.PresencePollsTotal.Inc()
	members, err := p.roster.ListMembers(ctx, rideID)

	p.mu.Lock()
	if p.rideID != rideID {
		p.mu.Unlock()
		return // ride changed while the fetch was in flight
	}
	if err != nil {
		observability.PresencePollFailures.Inc()
		p.connected = false
		p.lastErr = err
		p.mu.Unlock()
		p.logger.Warn("roster fetch failed", "ride_id", rideID, "error", err)
		return
	}
	p.members = members
	p.connected = true
	p.lastErr = nil
	subs := make([]func([]models.MemberPresence), len(p.subs))
	copy(subs, p.subs)
	snapshot := cloneMembers(members)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(cloneMembers(snapshot))
	}
}

// cloneMembers deep-copies a snapshot so consumers can never mutate the
// poller's cached view through shared pointers.
func cloneMembers(in []models.MemberPresence) []models.MemberPresence {
	if in == nil {
		return nil
	}
	out := make([]models.MemberPresence, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Lat != nil {
			v := *out[i].Lat
			out[i].Lat = &v
		}
		if out[i].Lon != nil {
			v := *out[i].Lon
			out[i].Lon = &v
		}
		if out[i].LastLocationUpdateAt != nil {
			v := *out[i].LastLocationUpdateAt
			out[i].LastLocationUpdateAt = &v
		}
	}
	return out
}
