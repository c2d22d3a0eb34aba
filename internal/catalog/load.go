package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yaml
var defaultStations []byte

type document struct {
	Stations []Station `yaml:"stations"`
}

// Default parses the embedded curated station list.
func Default() *Catalog {
	c, err := Parse(defaultStations)
	if err != nil {
		panic(fmt.Sprintf("embedded station list is invalid: %v", err))
	}
	return c
}

// Load reads a YAML station list from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document with a top-level "stations" list. A document
// without stations is rejected with [ErrEmptyCatalog].
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Stations) == 0 {
		return nil, ErrEmptyCatalog
	}
	return New(doc.Stations)
}
