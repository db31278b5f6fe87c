package diagnosis

import (
	"fmt"
	"strings"
)

// HealthStatus enum
type HealthStatus string

const (
	Healthy  HealthStatus = "Healthy"
	Diseased HealthStatus = "Diseased"
	Unknown  HealthStatus = "Unknown"
)

// ParseHealthStatus is case-insensitive; anything unrecognised is Unknown.
func ParseHealthStatus(s string) HealthStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy":
		return Healthy
	case "diseased":
		return Diseased
	default:
		return Unknown
	}
}

// AnalysisResult is the structured diagnosis returned for one leaf image.
// DiseaseName may be set even for Healthy results; consumers ignore it then.
type AnalysisResult struct {
	PlantName       string       `json:"plantName"`
	HealthStatus    HealthStatus `json:"healthStatus"`
	DiseaseName     string       `json:"diseaseName,omitempty"`
	Confidence      float64      `json:"confidence"`
	Description     string       `json:"description"`
	Symptoms        []string     `json:"symptoms"`
	Recommendations []string     `json:"recommendations"`
}

// Normalize coerces model output into the documented shape.
func (r *AnalysisResult) Normalize() {
	r.PlantName = strings.TrimSpace(r.PlantName)
	r.DiseaseName = strings.TrimSpace(r.DiseaseName)
	r.HealthStatus = ParseHealthStatus(string(r.HealthStatus))

	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1 && r.Confidence < 2:
		// fraction that overshot
		r.Confidence = 1
	case r.Confidence >= 2 && r.Confidence <= 100:
		// some models answer in percent
		r.Confidence /= 100
	case r.Confidence > 100:
		r.Confidence = 1
	}

	if r.Symptoms == nil {
		r.Symptoms = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}

func (r *AnalysisResult) Validate() error {
	if r.PlantName == "" {
		return fmt.Errorf("%w: plantName is empty", ErrInvalidResult)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidResult, r.Confidence)
	}
	return nil
}

// HasDisease reports whether a disease name applies to this result.
func (r *AnalysisResult) HasDisease() bool {
	return r.HealthStatus != Healthy && r.DiseaseName != ""
}

// Clone returns a deep copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Symptoms != nil {
		c.Symptoms = append([]string{}, r.Symptoms...)
	}
	if r.Recommendations != nil {
		c.Recommendations = append([]string{}, r.Recommendations...)
	}
	return &c
}
