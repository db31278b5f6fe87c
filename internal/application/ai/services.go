package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafdoctor/internal/domain/ai"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

// Outcomes reported to the Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeQuota     = "quota"
	OutcomeCancelled = "cancelled"
)

// Recorder receives one observation per inference call.
type Recorder interface {
	ObserveAnalysis(outcome string, d time.Duration)
}

// Service wraps an ai.Client with logging and metrics. It satisfies ai.Client.
type Service struct {
	client  ai.Client
	log     *zap.Logger
	metrics Recorder
}

func NewService(client ai.Client, log *zap.Logger, metrics Recorder) *Service {
	return &Service{client: client, log: log, metrics: metrics}
}

func (s *Service) Analyze(ctx context.Context, image string) (*diagnosis.AnalysisResult, error) {
	start := time.Now()
	res, err := s.client.Analyze(ctx, image)
	elapsed := time.Since(start)

	outcome := OutcomeSuccess
	switch {
	case err == nil:
		s.log.Info("leaf analyzed",
			zap.String("plant", res.PlantName),
			zap.String("status", string(res.HealthStatus)),
			zap.Float64("confidence", res.Confidence),
			zap.Duration("duration", elapsed),
		)
	case errors.Is(err, context.Canceled):
		outcome = OutcomeCancelled
		s.log.Debug("analysis cancelled", zap.Duration("duration", elapsed))
	case errors.Is(err, ai.ErrQuotaExceeded):
		outcome = OutcomeQuota
		s.log.Warn("inference quota exceeded", zap.Error(cause(err)))
	default:
		outcome = OutcomeFailure
		s.log.Error("analysis failed", zap.Error(cause(err)), zap.Duration("duration", elapsed))
	}

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(outcome, elapsed)
	}
	return res, err
}

// cause unwraps an AnalysisError so logs carry the underlying failure
// rather than the fixed user message.
func cause(err error) error {
	var ae *diagnosis.AnalysisError
	if errors.As(err, &ae) && ae.Cause != nil {
		return ae.Cause
	}
	return err
}
