package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML catalog definition and compiles it. Unknown fields
// are rejected so a typo cannot silently disable a rule.
func Parse(data []byte) (*Catalog, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidCatalog, err)
	}
	return New(spec)
}

// LoadFile reads and compiles the YAML catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Marshal renders spec as YAML, the same format LoadFile accepts.
func Marshal(spec Spec) ([]byte, error) {
	return yaml.Marshal(spec)
}
