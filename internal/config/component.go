package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"haversine-sensor/internal/resource"
)

// DependencySpec describes one upstream resource to build.
type DependencySpec struct {
	Name       string         `json:"name"`
	API        resource.API   `json:"api"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ComponentFile is the on-disk description of the distance component.
type ComponentFile struct {
	Name         string           `json:"name"`
	Attributes   map[string]any   `json:"attributes"`
	Dependencies []DependencySpec `json:"dependencies"`
}

// LoadComponentFile reads and checks the component file at path.
func LoadComponentFile(path string) (ComponentFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return ComponentFile{}, fmt.Errorf("open component config: %w", err)
	}
	defer f.Close()

	var cf ComponentFile
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cf); err != nil {
		return ComponentFile{}, fmt.Errorf("decode component config %s: %w", path, err)
	}
	if err := cf.Validate(); err != nil {
		return ComponentFile{}, fmt.Errorf("component config %s: %w", path, err)
	}
	return cf, nil
}

// Validate fills defaults and rejects malformed dependency entries.
func (cf *ComponentFile) Validate() error {
	cf.Name = strings.TrimSpace(cf.Name)
	if cf.Name == "" {
		cf.Name = "haversine"
	}
	if cf.Attributes == nil {
		cf.Attributes = map[string]any{}
	}

	seen := make(map[resource.Name]bool, len(cf.Dependencies))
	var errs []error
	for i, d := range cf.Dependencies {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("dependencies[%d]: name is required", i))
			continue
		}
		if _, err := resource.ParseAPI(string(d.API)); err != nil {
			errs = append(errs, fmt.Errorf("dependencies[%d] %s: %w", i, d.Name, err))
			continue
		}
		if strings.TrimSpace(d.Type) == "" {
			errs = append(errs, fmt.Errorf("dependencies[%d] %s: type is required", i, d.Name))
			continue
		}
		n := resource.Name{API: d.API, Name: d.Name}
		if seen[n] {
			errs = append(errs, fmt.Errorf("dependencies[%d]: duplicate %s", i, n))
			continue
		}
		seen[n] = true
	}
	return errors.Join(errs...)
}
