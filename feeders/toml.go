package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed decodes the whole file into structure. Keys that match no field are
// reported as an error so typos do not go unnoticed.
func (t TomlFeeder) Feed(structure any) error {
	if err := checkStructure(structure); err != nil {
		return err
	}
	md, err := toml.DecodeFile(t.Path, structure)
	if err != nil {
		return fmt.Errorf("failed to decode TOML %s: %w", t.Path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("failed to decode TOML %s: unknown keys %v", t.Path, undecoded)
	}
	return nil
}
