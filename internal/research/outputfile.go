// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// WriteOutputFile saves a session's output to a YAML file so it can be
// reopened later without re-querying the providers.
func WriteOutputFile(path string, out *types.ResearchOutput) error {
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling output file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadOutputFile loads a previously saved output file from disk.
func ReadOutputFile(path string) (*types.ResearchOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading output file: %w", err)
	}
	var out types.ResearchOutput
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing output file: %w", err)
	}
	return &out, nil
}
