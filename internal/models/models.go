package models

import "time"

// PositionSample is one fix from the device sensor. Samples are immutable
// and superseded wholesale by the next fix.
type PositionSample struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Accuracy   float64   `json:"accuracy,omitempty"` // meters, 0 when unknown
	CapturedAt time.Time `json:"captured_at"`
}

// User identifies a ride participant.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type MemberStatus string

const (
	StatusWaiting MemberStatus = "waiting"
	StatusOnRoute MemberStatus = "on-route"
	StatusArrived MemberStatus = "arrived"
	StatusUnknown MemberStatus = "unknown"
)

// MemberPresence is a participant's last known status and position within a
// ride. The authoritative copy lives on the backend; the poller holds a
// read-only snapshot replaced wholesale on each successful fetch.
type MemberPresence struct {
	MemberID             string       `json:"member_id"`
	User                 User         `json:"user"`
	Status               MemberStatus `json:"status"`
	Lat                  *float64     `json:"lat,omitempty"`
	Lon                  *float64     `json:"lon,omitempty"`
	LastLocationUpdateAt *time.Time   `json:"last_location_update_at,omitempty"`
}

// HasLocation reports whether the member ever reported coordinates.
func (m MemberPresence) HasLocation() bool { return m.Lat != nil && m.Lon != nil }

// DisplayName prefers the human name, then the username, then the member id.
func (m MemberPresence) DisplayName() string {
	if m.User.Name != "" {
		return m.User.Name
	}
	if m.User.Username != "" {
		return m.User.Username
	}
	return m.MemberID
}

type AlertCategory string

const (
	AlertInfo      AlertCategory = "info"
	AlertWarning   AlertCategory = "warning"
	AlertError     AlertCategory = "error"
	AlertSuccess   AlertCategory = "success"
	AlertEmergency AlertCategory = "emergency"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertOrigin string

const (
	OriginLocal  AlertOrigin = "local"
	OriginServer AlertOrigin = "server"
)

// Alert is a time-bounded notification, either created locally or mirrored
// from a backend record. ExpiresAfter == 0 means it never auto-dismisses;
// emergency alerts always carry ExpiresAfter == 0.
type Alert struct {
	ID           string        `json:"id"`
	Message      string        `json:"message"`
	Category     AlertCategory `json:"category"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAfter time.Duration `json:"expires_after"`
	RideID       string        `json:"ride_id,omitempty"`
	Severity     AlertSeverity `json:"severity,omitempty"`
	Origin       AlertOrigin   `json:"origin"`
}

// MarkerState is the rendered map representation of one member. It is
// updated in place on subsequent snapshots, never destroyed and recreated,
// so the map does not flicker.
type MarkerState struct {
	MemberID   string       `json:"member_id"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Status     MemberStatus `json:"status"`
	RenderedAt time.Time    `json:"rendered_at"`
}

type RideStatus string

const (
	RideCreated RideStatus = "created"
	RideStarted RideStatus = "started"
	RidePaused  RideStatus = "paused"
	RideEnded   RideStatus = "ended"
)

// CanTransitionTo reports whether a ride may move from s to next.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	switch s {
	case RideCreated:
		return next == RideStarted || next == RideEnded
	case RideStarted:
		return next == RidePaused || next == RideEnded
	case RidePaused:
		return next == RideStarted || next == RideEnded
	default:
		return false
	}
}

// Ride is a session the companion participates in.
type Ride struct {
	ID        string     `json:"id"`
	GroupID   string     `json:"group_id"`
	Name      string     `json:"name"`
	Status    RideStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PositionUpdate is the message published on the position stream for every
// accepted sample.
type PositionUpdate struct {
	MemberID string    `json:"member_id"`
	RideID   string    `json:"ride_id"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Accuracy float64   `json:"accuracy,omitempty"`
	At       time.Time `json:"at"`
}
