package analyzer

import (
	"errors"

	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
)

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrCameraUnavailable = camera.ErrUnavailable
	ErrNotAnImage        = errors.New("file is not an image")
	ErrTooLarge          = errors.New("image exceeds upload limit")
	ErrStale             = errors.New("analysis result discarded: workflow was reset")
	ErrClosed            = errors.New("workflow closed")
	ErrSessionNotFound   = errors.New("session not found")
)

// fallbackMessage is shown when a failure carries no text of its own.
const fallbackMessage = "Diagnostic connection lost."

// decodeMessage is shown when a captured frame cannot be decoded.
const decodeMessage = "Captured frame could not be decoded."
