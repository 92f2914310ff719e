package strategy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk strategy configuration.
//
//	strategies:
//	  - entity_type: credential
//	    default_policy: last-writer-wins
//	    critical_fields: [password]
//	    fields:
//	      tags: union
//	      usage_count: max
type File struct {
	Strategies []EntityStrategy `yaml:"strategies" validate:"dive"`
}

// Load parses a YAML strategy file and builds a registry from it.
func Load(r io.Reader, resolvers map[string]ResolverFunc) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies: %w", err)
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to parse yaml: %w", ErrInvalidStrategy, err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
	}

	return NewRegistry(file.Strategies, resolvers)
}

// LoadFile reads strategies from path. An empty path yields the built-in defaults.
func LoadFile(path string, resolvers map[string]ResolverFunc) (*Registry, error) {
	if path == "" {
		return NewRegistry(Defaults(), resolvers)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open strategies file: %w", err)
	}
	defer f.Close()

	return Load(f, resolvers)
}
