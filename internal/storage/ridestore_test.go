package storage

import (
	"testing"

	"github.com/example/ride-companion/internal/models"
)

func TestTransitionLifecycle(t *testing.T) {
	r := &models.Ride{ID: "r1", Status: models.RideCreated}

	steps := []models.RideStatus{models.RideStarted, models.RidePaused, models.RideStarted, models.RideEnded}
	for _, next := range steps {
		if err := Transition(r, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if r.Status != models.RideEnded {
		t.Fatalf("final status = %s", r.Status)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct {
		from, to models.RideStatus
	}{
		{models.RideCreated, models.RidePaused},
		{models.RideEnded, models.RideStarted},
		{models.RideEnded, models.RideEnded},
		{models.RidePaused, models.RidePaused},
	}
	for _, tc := range cases {
		r := &models.Ride{ID: "r1", Status: tc.from}
		if err := Transition(r, tc.to); err == nil {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if r.Status != tc.from {
			t.Errorf("failed transition mutated status: %s", r.Status)
		}
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	r := &models.Ride{ID: "r1", GroupID: "g1", Status: models.RideCreated}
	if err := s.SaveRide(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.GetRide("r1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != models.RideCreated {
		t.Fatalf("wrong status: %s", got.Status)
	}

	// the returned ride is a copy
	got.Status = models.RideEnded
	again, _, _ := s.GetRide("r1")
	if again.Status != models.RideCreated {
		t.Fatal("caller mutation leaked into store")
	}

	r.Status = models.RideStarted
	if err := s.UpdateRide(r); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _, _ = s.GetRide("r1")
	if again.Status != models.RideStarted {
		t.Fatalf("update not persisted: %s", again.Status)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	if err := s.UpdateRide(&models.Ride{ID: "nope"}); err == nil {
		t.Fatal("update of missing ride succeeded")
	}
	if _, ok, err := s.GetRide("nope"); ok || err != nil {
		t.Fatalf("missing ride: ok=%v err=%v", ok, err)
	}
}
