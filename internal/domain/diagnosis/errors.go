package diagnosis

import "errors"

// UserMessage is the only text shown to users for any inference failure.
const UserMessage = "Failed to analyze image. Please ensure the tomato leaf is centered and well-lit."

var (
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrInvalidResult  = errors.New("invalid analysis result")
)

// AnalysisError collapses every inference failure into one user-facing error.
// The cause stays reachable through errors.Is/As for logging and status mapping.
type AnalysisError struct {
	Cause error
}

func NewAnalysisError(cause error) error {
	return &AnalysisError{Cause: cause}
}

func (e *AnalysisError) Error() string {
	return UserMessage
}

func (e *AnalysisError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAnalysisFailed}
	}
	return []error{ErrAnalysisFailed, e.Cause}
}
