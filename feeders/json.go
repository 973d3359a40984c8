package feeders

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder struct {
	Path string
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{Path: filePath}
}

// Feed decodes the whole file into structure.
func (j JSONFeeder) Feed(structure any) error {
	if err := checkStructure(structure); err != nil {
		return err
	}
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}
	if err := json.Unmarshal(data, structure); err != nil {
		return fmt.Errorf("failed to decode JSON %s: %w", j.Path, err)
	}
	return nil
}
