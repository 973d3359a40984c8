// Package feeders fills configuration structs from files and the
// environment. Feeders run in order; later feeders override earlier ones.
package feeders

import (
	"errors"
	"path/filepath"
	"strings"
)

// Feeder fills structure, which must be a pointer to a struct.
type Feeder interface {
	Feed(structure any) error
}

var (
	ErrInvalidStructure     = errors.New("feeder: structure must be a non-nil pointer to a struct")
	ErrUnsupportedExtension = errors.New("feeder: unsupported file extension")
	ErrFieldCannotBeSet     = errors.New("feeder: field cannot be set")
)

// ForFile picks a file feeder by extension: .yaml, .yml, .toml or .json.
func ForFile(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	case ".json":
		return NewJSONFeeder(path), nil
	default:
		return nil, ErrUnsupportedExtension
	}
}
