// Package anomaly derives staleness warnings from roster snapshots: a
// member whose last location update is older than the threshold gets
// flagged once per staleness episode.
package anomaly

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/observability"
)

const (
	DefaultStaleAfter = 5 * time.Minute
	DefaultAlertTTL   = 10 * time.Second
)

// Notifier receives the warning alerts the detector raises. The alert
// engine satisfies it.
type Notifier interface {
	PushTTL(category models.AlertCategory, message string, ttl time.Duration) models.Alert
}

// Detector re-evaluates staleness whenever the poller publishes a snapshot.
// An open episode is keyed by member id and the LastLocationUpdateAt that
// triggered it; a fresh update (or the member leaving the roster) closes the
// episode so the next staleness period alerts again.
type Detector struct {
	notifier   Notifier
	clk        clock.Clock
	logger     *slog.Logger
	staleAfter time.Duration
	alertTTL   time.Duration

	mu       sync.Mutex
	episodes map[string]time.Time // member id -> stale LastLocationUpdateAt
}

func New(notifier Notifier, c clock.Clock, logger *slog.Logger, staleAfter, alertTTL time.Duration) *Detector {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if alertTTL <= 0 {
		alertTTL = DefaultAlertTTL
	}
	return &Detector{
		notifier:   notifier,
		clk:        c,
		logger:     logger,
		staleAfter: staleAfter,
		alertTTL:   alertTTL,
		episodes:   make(map[string]time.Time),
	}
}

// Check inspects one snapshot. It is cheap and safe to call on every poll
// tick.
func (d *Detector) Check(members []models.MemberPresence) {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.MemberID] = true
		if m.LastLocationUpdateAt == nil {
			continue
		}
		last := *m.LastLocationUpdateAt
		if now.Sub(last) <= d.staleAfter {
			delete(d.episodes, m.MemberID) // fresh again, episode closed
			continue
		}
		if opened, ok := d.episodes[m.MemberID]; ok && opened.Equal(last) {
			continue // already flagged this episode
		}
		d.episodes[m.MemberID] = last
		observability.AnomaliesTotal.Inc()
		age := now.Sub(last).Truncate(time.Minute)
		d.notifier.PushTTL(
			models.AlertWarning,
			fmt.Sprintf("%s has not updated their location for %s", m.DisplayName(), age),
			d.alertTTL,
		)
		d.logger.Info("stale member detected", "member_id", m.MemberID, "age", age)
	}

	// members gone from the roster take their episodes with them
	for id := range d.episodes {
		if !seen[id] {
			delete(d.episodes, id)
		}
	}
}
