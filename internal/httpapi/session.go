package httpapi

import (
	"errors"
	"sync"
	"time"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/storage"
)

// ErrNoSession means no ride session has been opened on this companion.
var ErrNoSession = errors.New("no active ride session")

// Session is the companion's record of the ride it is attached to. State
// transitions are validated and persisted through the ride store.
type Session struct {
	store storage.RideStore

	mu   sync.Mutex
	ride *models.Ride
}

func NewSession(store storage.RideStore) *Session {
	return &Session{store: store}
}

// Open records participation in a ride, persisting it as created (or the
// given status) if the store has no record yet.
func (s *Session) Open(ride models.Ride) error {
	if ride.Status == "" {
		ride.Status = models.RideCreated
	}
	now := time.Now()
	if ride.CreatedAt.IsZero() {
		ride.CreatedAt = now
	}
	ride.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveRide(&ride); err != nil {
		return err
	}
	s.ride = &ride
	return nil
}

// Current returns a copy of the session's ride.
func (s *Session) Current() (models.Ride, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ride == nil {
		return models.Ride{}, false
	}
	return *s.ride, true
}

// Transition moves the ride to next after validating the state machine.
func (s *Session) Transition(next models.RideStatus) (models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ride == nil {
		return models.Ride{}, ErrNoSession
	}
	updated := *s.ride
	if err := storage.Transition(&updated, next); err != nil {
		return models.Ride{}, err
	}
	updated.UpdatedAt = time.Now()
	if err := s.store.UpdateRide(&updated); err != nil {
		return models.Ride{}, err
	}
	s.ride = &updated
	return updated, nil
}
