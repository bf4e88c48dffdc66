package models

// RideContext is what the companion is attached to: either a group with no
// ride in progress, or an active ride. It is resolved once at startup and
// passed around as the sealed variant, never as an untyped value.
type RideContext interface {
	isRideContext()
}

// GroupContext means the companion follows a group that has not started a
// ride yet; there is nothing to poll or upload until a ride begins.
type GroupContext struct {
	GroupID string
	Name    string
}

// ActiveRideContext means a ride is in progress and drives all polling and
// upload paths.
type ActiveRideContext struct {
	RideID  string
	GroupID string
	Name    string
}

func (GroupContext) isRideContext()      {}
func (ActiveRideContext) isRideContext() {}

// ActiveRideID returns the ride identifier when ctx is an active ride.
func ActiveRideID(ctx RideContext) (string, bool) {
	if c, ok := ctx.(ActiveRideContext); ok && c.RideID != "" {
		return c.RideID, true
	}
	return "", false
}
