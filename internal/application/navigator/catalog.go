package navigator

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Milestone struct {
	Title       string `yaml:"title" json:"title"`
	Date        string `yaml:"date" json:"date"`
	Description string `yaml:"description" json:"description"`
}

type AppInfo struct {
	Name       string      `yaml:"name" json:"name"`
	Headline   string      `yaml:"headline" json:"headline"`
	Tagline    string      `yaml:"tagline" json:"tagline"`
	Abstract   []string    `yaml:"abstract" json:"abstract"`
	Conclusion string      `yaml:"conclusion" json:"conclusion"`
	Milestones []Milestone `yaml:"milestones" json:"milestones"`
}

// Disease is one entry of the reference index shown on the diseases screen.
type Disease struct {
	Ref         int    `yaml:"-" json:"ref"`
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Risk        string `yaml:"risk" json:"risk"`
	Description string `yaml:"description" json:"description"`
	Remedy      string `yaml:"remedy" json:"remedy"`
}

type Catalog struct {
	App      AppInfo   `yaml:"app" json:"app"`
	Diseases []Disease `yaml:"diseases" json:"diseases"`
}

// LoadCatalog parses the built-in catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range c.Diseases {
		d := &c.Diseases[i]
		if d.Name == "" {
			return nil, fmt.Errorf("parse catalog: disease %d has no name", i)
		}
		d.Ref = 1000 + i
	}
	return &c, nil
}
