// Package markers reconciles the rendered marker set against each roster
// snapshot: new members with coordinates gain a marker, present members are
// moved in place, departed members lose theirs. Members without coordinates
// are never rendered at a default location.
package markers

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/observability"
)

// Bounds is the rectangle covering all current marker positions.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Renderer is the map surface the reconciler drives. UpdateMarker moves an
// existing marker in place; the reconciler never removes and re-adds a
// marker for a member that stayed present.
type Renderer interface {
	AddMarker(m models.MarkerState)
	UpdateMarker(m models.MarkerState)
	RemoveMarker(memberID string)
	FitBounds(b Bounds)
}

// Ops counts the operations one reconciliation pass produced.
type Ops struct {
	Added   int
	Updated int
	Removed int
}

func (o Ops) Total() int { return o.Added + o.Updated + o.Removed }

// Reconciler tracks the currently rendered markers keyed by member id.
type Reconciler struct {
	renderer Renderer
	clk      clock.Clock

	mu      sync.Mutex
	markers map[string]*models.MarkerState
}

func New(renderer Renderer, c clock.Clock) *Reconciler {
	if c == nil {
		c = clock.New()
	}
	return &Reconciler{
		renderer: renderer,
		clk:      c,
		markers:  make(map[string]*models.MarkerState),
	}
}

// Apply reconciles against one snapshot and returns the operations issued.
// Applying the same snapshot twice issues no operations the second time.
func (r *Reconciler) Apply(members []models.MemberPresence) Ops {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ops Ops
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if !m.HasLocation() {
			continue
		}
		seen[m.MemberID] = true
		lat, lon := *m.Lat, *m.Lon

		if cur, ok := r.markers[m.MemberID]; ok {
			if cur.Lat == lat && cur.Lon == lon && cur.Status == m.Status {
				continue
			}
			cur.Lat = lat
			cur.Lon = lon
			cur.Status = m.Status
			cur.RenderedAt = r.clk.Now()
			r.renderer.UpdateMarker(*cur)
			ops.Updated++
			continue
		}

		ms := &models.MarkerState{
			MemberID:   m.MemberID,
			Lat:        lat,
			Lon:        lon,
			Status:     m.Status,
			RenderedAt: r.clk.Now(),
		}
		r.markers[m.MemberID] = ms
		r.renderer.AddMarker(*ms)
		ops.Added++
	}

	for id := range r.markers {
		if !seen[id] {
			delete(r.markers, id)
			r.renderer.RemoveMarker(id)
			ops.Removed++
		}
	}

	if ops.Total() > 0 && len(r.markers) > 0 {
		r.renderer.FitBounds(r.boundsLocked())
	}

	observability.MarkerOpsTotal.WithLabelValues("add").Add(float64(ops.Added))
	observability.MarkerOpsTotal.WithLabelValues("update").Add(float64(ops.Updated))
	observability.MarkerOpsTotal.WithLabelValues("remove").Add(float64(ops.Removed))
	return ops
}

// Markers returns a copy of the currently rendered set.
func (r *Reconciler) Markers() []models.MarkerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MarkerState, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, *m)
	}
	return out
}

// Bounds returns the rectangle covering all markers and false when none
// exist.
func (r *Reconciler) Bounds() (Bounds, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.markers) == 0 {
		return Bounds{}, false
	}
	return r.boundsLocked(), true
}

func (r *Reconciler) boundsLocked() Bounds {
	first := true
	var b Bounds
	for _, m := range r.markers {
		if first {
			b = Bounds{MinLat: m.Lat, MaxLat: m.Lat, MinLon: m.Lon, MaxLon: m.Lon}
			first = false
			continue
		}
		if m.Lat < b.MinLat {
			b.MinLat = m.Lat
		}
		if m.Lat > b.MaxLat {
			b.MaxLat = m.Lat
		}
		if m.Lon < b.MinLon {
			b.MinLon = m.Lon
		}
		if m.Lon > b.MaxLon {
			b.MaxLon = m.Lon
		}
	}
	return b
}
