package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lattice-iac/conductor/types"
)

// LoadRules reads the static policy rules document at path. No hot reload:
// the document is loaded once per run and held for the batch's lifetime.
func LoadRules(path string) (types.PolicyRulesDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.PolicyRulesDocument{}, fmt.Errorf("rules file not found: %s", path)
		}
		return types.PolicyRulesDocument{}, fmt.Errorf("cannot read rules file %q: %w", path, err)
	}

	var doc types.PolicyRulesDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return types.PolicyRulesDocument{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return doc, nil
}
