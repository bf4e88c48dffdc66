package anomaly

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/ride-companion/internal/logging"
	"github.com/example/ride-companion/internal/models"
)

type fakeNotifier struct {
	mu     sync.Mutex
	pushed []models.Alert
}

func (f *fakeNotifier) PushTTL(category models.AlertCategory, message string, ttl time.Duration) models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := models.Alert{Category: category, Message: message, ExpiresAfter: ttl}
	f.pushed = append(f.pushed, a)
	return a
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func presenceAt(id string, last time.Time) models.MemberPresence {
	lat, lon := 1.0, 2.0
	return models.MemberPresence{
		MemberID:             id,
		User:                 models.User{ID: "u-" + id, Name: id},
		Status:               models.StatusOnRoute,
		Lat:                  &lat,
		Lon:                  &lon,
		LastLocationUpdateAt: &last,
	}
}

func TestStaleMemberFlaggedOnce(t *testing.T) {
	mock := clock.NewMock()
	n := &fakeNotifier{}
	d := New(n, mock, logging.Discard(), 5*time.Minute, 10*time.Second)

	last := mock.Now().Add(-6 * time.Minute)
	snap := []models.MemberPresence{presenceAt("alice", last)}

	d.Check(snap)
	if n.count() != 1 {
		t.Fatalf("expected one warning, got %d", n.count())
	}
	if a := n.pushed[0]; a.Category != models.AlertWarning || !strings.Contains(a.Message, "alice") {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if n.pushed[0].ExpiresAfter != 10*time.Second {
		t.Fatalf("warning carries wrong ttl: %v", n.pushed[0].ExpiresAfter)
	}

	// same episode on subsequent polls: no re-alert
	d.Check(snap)
	mock.Add(time.Minute)
	d.Check(snap)
	if n.count() != 1 {
		t.Fatalf("episode re-alerted: %d warnings", n.count())
	}
}

func TestFreshUpdateClosesEpisode(t *testing.T) {
	mock := clock.NewMock()
	n := &fakeNotifier{}
	d := New(n, mock, logging.Discard(), 5*time.Minute, 10*time.Second)

	stale := mock.Now().Add(-6 * time.Minute)
	d.Check([]models.MemberPresence{presenceAt("bob", stale)})
	if n.count() != 1 {
		t.Fatalf("expected one warning, got %d", n.count())
	}

	// bob reports in: episode closes silently
	d.Check([]models.MemberPresence{presenceAt("bob", mock.Now())})
	if n.count() != 1 {
		t.Fatalf("fresh update raised a warning: %d", n.count())
	}

	// bob goes quiet again: a new episode, a new warning
	mock.Add(6 * time.Minute)
	d.Check([]models.MemberPresence{presenceAt("bob", mock.Now().Add(-6 * time.Minute))})
	if n.count() != 2 {
		t.Fatalf("new episode not flagged: %d warnings", n.count())
	}
}

func TestDepartedMemberClearsEpisode(t *testing.T) {
	mock := clock.NewMock()
	n := &fakeNotifier{}
	d := New(n, mock, logging.Discard(), 5*time.Minute, 10*time.Second)

	stale := mock.Now().Add(-6 * time.Minute)
	d.Check([]models.MemberPresence{presenceAt("carol", stale)})
	if n.count() != 1 {
		t.Fatalf("expected one warning, got %d", n.count())
	}

	// carol leaves the roster, then rejoins with the same stale timestamp:
	// a fresh episode
	d.Check(nil)
	d.Check([]models.MemberPresence{presenceAt("carol", stale)})
	if n.count() != 2 {
		t.Fatalf("rejoin with stale position not flagged: %d", n.count())
	}
}

func TestMembersWithoutUpdatesAreIgnored(t *testing.T) {
	mock := clock.NewMock()
	n := &fakeNotifier{}
	d := New(n, mock, logging.Discard(), 5*time.Minute, 10*time.Second)

	d.Check([]models.MemberPresence{{MemberID: "dave", Status: models.StatusWaiting}})
	if n.count() != 0 {
		t.Fatalf("member without timestamp flagged: %d", n.count())
	}
}

func TestBoundaryIsNotStale(t *testing.T) {
	mock := clock.NewMock()
	n := &fakeNotifier{}
	d := New(n, mock, logging.Discard(), 5*time.Minute, 10*time.Second)

	// exactly at the threshold: still fresh
	d.Check([]models.MemberPresence{presenceAt("erin", mock.Now().Add(-5*time.Minute))})
	if n.count() != 0 {
		t.Fatalf("threshold-age member flagged: %d", n.count())
	}

	mock.Add(time.Second)
	d.Check([]models.MemberPresence{presenceAt("erin", mock.Now().Add(-5*time.Minute - time.Second))})
	if n.count() != 1 {
		t.Fatalf("past-threshold member not flagged: %d", n.count())
	}
}
