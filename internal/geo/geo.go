package geo

import (
	"math"
	"sync"

	"github.com/example/ride-companion/internal/models"
)

// Index answers nearest-member queries over the latest roster snapshot. It
// subscribes to the presence poller and is replaced wholesale per snapshot.
type Index struct {
	mu      sync.RWMutex
	members map[string]models.MemberPresence
}

func NewIndex() *Index {
	return &Index{members: make(map[string]models.MemberPresence)}
}

// Update replaces the indexed snapshot; members without coordinates are
// skipped.
func (g *Index) Update(members []models.MemberPresence) {
	next := make(map[string]models.MemberPresence, len(members))
	for _, m := range members {
		if !m.HasLocation() {
			continue
		}
		next[m.MemberID] = m
	}
	g.mu.Lock()
	g.members = next
	g.mu.Unlock()
}

// naive scan; roster sizes are small enough that a geo-hash is overkill
func (g *Index) Nearby(lat, lon float64, limit int) []models.MemberPresence {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		m    models.MemberPresence
		dist float64
	}
	arr := make([]pair, 0, len(g.members))
	for _, m := range g.members {
		dist := Haversine(lat, lon, *m.Lat, *m.Lon)
		arr = append(arr, pair{m, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.MemberPresence, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].m)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
