package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-companion/internal/models"
)

type fakeUpdater struct {
	geoFailures  int
	hsetFailures int
	geoCalls     int
	hsetCalls    int
	lastLoc      *redis.GeoLocation
	lastMeta     map[string]interface{}
	lastMetaKey  string
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.geoFailures {
		return errors.New("redis geo unavailable")
	}
	f.lastLoc = loc
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hsetCalls++
	if f.hsetCalls <= f.hsetFailures {
		return errors.New("redis hset unavailable")
	}
	f.lastMetaKey = key
	f.lastMeta = values
	return nil
}

func update() *models.PositionUpdate {
	return &models.PositionUpdate{
		MemberID: "m1",
		RideID:   "r1",
		Lat:      48.85,
		Lon:      2.35,
		At:       time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
}

func TestMirrorWritesGeoAndMeta(t *testing.T) {
	f := &fakeUpdater{}
	if err := mirrorWithRetry(context.Background(), f, "members_geo", update(), 3, time.Millisecond); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if f.lastLoc == nil || f.lastLoc.Name != "m1" || f.lastLoc.Latitude != 48.85 {
		t.Fatalf("geo location: %+v", f.lastLoc)
	}
	if f.lastMetaKey != "member:meta:m1" {
		t.Fatalf("meta key: %s", f.lastMetaKey)
	}
	if f.lastMeta["ride_id"] != "r1" {
		t.Fatalf("meta: %v", f.lastMeta)
	}
}

func TestMirrorRetriesTransientGeoFailure(t *testing.T) {
	f := &fakeUpdater{geoFailures: 2}
	if err := mirrorWithRetry(context.Background(), f, "members_geo", update(), 3, time.Millisecond); err != nil {
		t.Fatalf("mirror after retries: %v", err)
	}
	if f.geoCalls != 3 {
		t.Fatalf("geo calls = %d", f.geoCalls)
	}
}

func TestMirrorGivesUpAfterAttempts(t *testing.T) {
	f := &fakeUpdater{geoFailures: 5}
	if err := mirrorWithRetry(context.Background(), f, "members_geo", update(), 3, time.Millisecond); err == nil {
		t.Fatal("exhausted retries reported success")
	}
	if f.geoCalls != 3 {
		t.Fatalf("geo calls = %d", f.geoCalls)
	}
}

func TestMirrorRetriesHSetFailure(t *testing.T) {
	f := &fakeUpdater{hsetFailures: 1}
	if err := mirrorWithRetry(context.Background(), f, "members_geo", update(), 3, time.Millisecond); err != nil {
		t.Fatalf("mirror after hset retry: %v", err)
	}
	if f.lastMeta == nil {
		t.Fatal("meta never written")
	}
}
