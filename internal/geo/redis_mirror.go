package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-companion/internal/models"
)

// RedisMirror keeps a fleet-wide GEO set of member positions in Redis so
// ops tooling can query the whole fleet, not just the companion's own ride.
type RedisMirror struct {
	client *redis.Client
	key    string
}

func NewRedisMirror(addr, password, key string) *RedisMirror {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisMirror{client: c, key: key}
}

// Upsert writes one position into the GEO set plus a metadata hash.
func (r *RedisMirror) Upsert(ctx context.Context, u models.PositionUpdate) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: u.Lon, Latitude: u.Lat, Name: u.MemberID}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(u.MemberID), map[string]interface{}{
		"ride_id":  u.RideID,
		"accuracy": strconv.FormatFloat(u.Accuracy, 'f', -1, 64),
		"updated":  u.At.Format(time.RFC3339),
	}).Err()
}

// Nearby queries members within radiusM meters, nearest first.
func (r *RedisMirror) Nearby(ctx context.Context, lat, lon, radiusM float64, limit int) ([]models.PositionUpdate, error) {
	res, err := r.client.GeoRadius(ctx, r.key, lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusM, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.PositionUpdate, 0, len(res))
	for _, g := range res {
		u := models.PositionUpdate{MemberID: g.Name, Lat: g.Latitude, Lon: g.Longitude}
		if m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			u.RideID = m["ride_id"]
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					u.At = ts
				}
			}
		}
		out = append(out, u)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *RedisMirror) Close() error { return r.client.Close() }

func metaKey(id string) string { return "member:meta:" + id }
