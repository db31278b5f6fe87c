package gallery

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

// DateLayout is the format of Query date bounds.
const DateLayout = "2006-01-02"

// StatusFilter enum
type StatusFilter string

const (
	StatusAll      StatusFilter = "All"
	StatusHealthy  StatusFilter = "Healthy"
	StatusDiseased StatusFilter = "Diseased"
)

// ParseStatusFilter accepts All, Healthy, Diseased (any case); empty means All.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "healthy":
		return StatusHealthy, nil
	case "diseased":
		return StatusDiseased, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, s)
	}
}

// Query narrows a collection. All predicates are ANDed; zero values match everything.
type Query struct {
	Text      string
	Status    StatusFilter
	DateStart string // YYYY-MM-DD, inclusive
	DateEnd   string // YYYY-MM-DD, inclusive
	Location  *time.Location
}

func (q Query) Validate() error {
	if _, err := ParseStatusFilter(string(q.Status)); err != nil {
		return err
	}
	for _, d := range []string{q.DateStart, q.DateEnd} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidQuery, d)
		}
	}
	return nil
}

// Filter returns the items matching q, preserving collection order.
// An Unknown item only ever matches StatusAll.
func Filter(items []*Item, q Query) []*Item {
	text := strings.ToLower(q.Text)
	loc := q.Location
	if loc == nil {
		loc = time.Local
	}

	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if !matchesText(it, text) || !matchesStatus(it, q.Status) {
			continue
		}
		day := it.SavedAt().In(loc).Format(DateLayout)
		if q.DateStart != "" && day < q.DateStart {
			continue
		}
		if q.DateEnd != "" && day > q.DateEnd {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matchesText(it *Item, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(it.CustomName), lowered) ||
		strings.Contains(strings.ToLower(it.Analysis.PlantName), lowered)
}

func matchesStatus(it *Item, s StatusFilter) bool {
	switch s {
	case "", StatusAll:
		return true
	case StatusHealthy:
		return it.Analysis.HealthStatus == diagnosis.Healthy
	case StatusDiseased:
		return it.Analysis.HealthStatus == diagnosis.Diseased
	default:
		return false
	}
}
