package rolereq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gatewise/gatewise/internal/crypto"
)

// Load reads a YAML role table and computes its content hash from the raw
// bytes, so evaluation results can record which table version they used.
func Load(path string) (Table, error) {
	// #nosec G304 -- path comes from operator-configured config.
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	return Parse(data)
}

// Parse decodes a YAML role table from raw bytes.
func Parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, err
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	t.Hash = crypto.DigestWithPrefix(data)
	return t, nil
}

func (t Table) validate() error {
	seen := map[string]struct{}{}
	for _, r := range t.Roles {
		if r.ID == "" {
			return fmt.Errorf("role with empty id")
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate role id: %s", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
