package gallery

import (
	"time"

	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

// ItemID identifier type
type ItemID = string

// Item is one saved diagnosis. It owns its AnalysisResult and is never edited
// in place once created; JSON names match the browser archive format.
type Item struct {
	ID         ItemID                   `json:"id"`
	Image      string                   `json:"image"`
	Analysis   diagnosis.AnalysisResult `json:"analysis"`
	CustomName string                   `json:"customName"`
	Timestamp  int64                    `json:"timestamp"` // ms since epoch
}

// SavedAt returns the save time as time.Time.
func (i *Item) SavedAt() time.Time {
	return time.UnixMilli(i.Timestamp)
}

// DisplayName is the custom label, falling back to the plant name.
func (i *Item) DisplayName() string {
	if i.CustomName != "" {
		return i.CustomName
	}
	return i.Analysis.PlantName
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Analysis = *i.Analysis.Clone()
	return &c
}

// Stats are counts over the whole, unfiltered collection.
type Stats struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Diseased int `json:"diseased"`
}

func ComputeStats(items []*Item) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		switch it.Analysis.HealthStatus {
		case diagnosis.Healthy:
			s.Healthy++
		case diagnosis.Diseased:
			s.Diseased++
		}
	}
	return s
}
