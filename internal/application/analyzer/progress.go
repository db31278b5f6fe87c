package analyzer

import "time"

// DiagnosticSteps are display labels cycled while an analysis is running.
// They do not reflect real progress.
var DiagnosticSteps = []string{
	"INITIALIZING_OPTICS",
	"NORMALIZING_LUMINANCE",
	"EXTRACTING_VEINS",
	"CHLOROPHYLL_SCAN",
	"PATTERN_MATCHING",
	"CONSULTING_ENGINE",
	"SYNTHESIZING_REPORT",
}

const StepInterval = time.Second

// StepAt returns the label shown at now for an analysis started at started.
func StepAt(started, now time.Time) string {
	if !now.After(started) {
		return DiagnosticSteps[0]
	}
	n := int(now.Sub(started) / StepInterval)
	return DiagnosticSteps[n%len(DiagnosticSteps)]
}
