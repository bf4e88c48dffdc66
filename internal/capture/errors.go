package capture

import (
	"context"
	"errors"
)

// Sensor failure taxonomy. ErrUnsupported is fatal to StartTracking; the
// other three stop tracking and require an explicit restart.
var (
	ErrUnsupported         = errors.New("positioning is not supported on this device")
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location information is unavailable")
	ErrFixTimeout          = errors.New("location request timed out")
)

// Classify folds an arbitrary sensor error into the taxonomy. Context
// expiry means the fix timed out; anything unrecognized counts as the
// position being unavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrPositionUnavailable),
		errors.Is(err, ErrFixTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrFixTimeout
	default:
		return ErrPositionUnavailable
	}
}

// UserMessage maps a classified sensor failure to the message shown to the
// rider.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Location tracking is not supported on this device."
	case errors.Is(err, ErrPermissionDenied):
		return "Location permission was denied. Enable it to share your position."
	case errors.Is(err, ErrFixTimeout):
		return "Timed out waiting for a location fix."
	default:
		return "Your location is currently unavailable."
	}
}
