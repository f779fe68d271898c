package license

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

type freeFamiliesFile struct {
	FreeFamilies []string `json:"freeFamilies"`
}

// LoadFreeFamiliesFile reads surnames from a YAML file shaped as
//
//	freeFamilies:
//	  - Rossi
//	  - Fernández
func LoadFreeFamiliesFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read free families file: %w", err)
	}

	var file freeFamiliesFile
	if err := yaml.UnmarshalStrict(raw, &file); err != nil {
		return nil, fmt.Errorf("parse free families file %s: %w", path, err)
	}
	return file.FreeFamilies, nil
}
