package ai

import (
	"context"

	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

// Client sends one encoded leaf image to the inference service.
// Implementations return *diagnosis.AnalysisError on every failure.
type Client interface {
	Analyze(ctx context.Context, image string) (*diagnosis.AnalysisResult, error)
}
