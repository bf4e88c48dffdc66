package storage

import (
	"fmt"
	"sync"

	"github.com/example/ride-companion/internal/models"
)

// RideStore persists the ride sessions the companion participates in.
type RideStore interface {
	SaveRide(r *models.Ride) error
	UpdateRide(r *models.Ride) error
	GetRide(id string) (*models.Ride, bool, error)
}

// Transition validates and applies a ride status change.
func Transition(r *models.Ride, next models.RideStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("ride %s cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]models.Ride)}
}

func (m *MemoryStore) SaveRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return fmt.Errorf("ride %s not found", r.ID)
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(id string) (*models.Ride, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, false, nil
	}
	out := r
	return &out, true, nil
}
