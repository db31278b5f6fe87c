package camera

import (
	"context"
	"errors"
)

// UnavailableMessage is shown when a camera cannot be opened or read.
const UnavailableMessage = "Unable to access high-res camera."

var (
	ErrUnavailable = errors.New("camera unavailable")
	ErrStopped     = errors.New("camera stream stopped")
)

// Constraints describe the preferred capture settings.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints asks for the environment-facing camera at 1280x720.
var DefaultConstraints = Constraints{FacingMode: "environment", Width: 1280, Height: 720}

// Device opens exclusive streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera stream. Stop releases the device and is idempotent.
type Stream interface {
	Frame(ctx context.Context) ([]byte, error)
	Stop() error
}
