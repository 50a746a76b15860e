package universe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/marketscan/backend/internal/contracts"
)

// catalogFile is the on-disk YAML layout:
//
//	universes:
//	  - id: SEMIS
//	    name: Semiconductors
//	    max_symbols: 30
//	    symbols: [NVDA, AMD, AVGO]
type catalogFile struct {
	Universes []Definition `yaml:"universes"`
}

// LoadCatalog merges a YAML catalogue into the built-in definitions.
// Entries with a built-in id replace it, new ids are appended in file order.
func LoadCatalog(path string) ([]Definition, error) {
	defs := Builtins()
	if path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe catalog: %w", err)
	}
	return mergeCatalog(defs, data)
}

func mergeCatalog(defs []Definition, data []byte) ([]Definition, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse universe catalog: %w", err)
	}

	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}

	for _, d := range file.Universes {
		if err := ValidateDefinition(&d); err != nil {
			return nil, err
		}
		if i, ok := index[d.ID]; ok {
			defs[i] = d
			continue
		}
		index[d.ID] = len(defs)
		defs = append(defs, d)
	}

	return defs, nil
}

// ValidateDefinition normalizes symbols and checks id, name and limits
func ValidateDefinition(d *Definition) error {
	if err := contracts.ValidateUniverseID(d.ID); err != nil {
		return err
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	if d.MaxSymbols <= 0 {
		d.MaxSymbols = 50
	}
	d.Symbols = contracts.NormalizeSymbols(d.Symbols)
	if err := contracts.ValidateSymbols(d.Symbols); err != nil {
		return fmt.Errorf("universe %s: %w", d.ID, err)
	}
	if len(d.Symbols) > d.MaxSymbols {
		return fmt.Errorf("universe %s: %w (%d > %d)", d.ID, contracts.ErrTooManySymbols, len(d.Symbols), d.MaxSymbols)
	}
	return nil
}
