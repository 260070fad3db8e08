package checklist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gatewise/gatewise/internal/crypto"
)

// Load reads a YAML typology table and computes its content hash from the
// raw bytes.
func Load(path string) (Table, error) {
	// #nosec G304 -- path comes from operator-configured config.
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML typology table from raw bytes.
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
	for _, ty := range t.Typologies {
		if ty.ID == "" {
			return fmt.Errorf("typology with empty id")
		}
		if _, dup := seen[ty.ID]; dup {
			return fmt.Errorf("duplicate typology id: %s", ty.ID)
		}
		seen[ty.ID] = struct{}{}

		phases := map[string]struct{}{}
		for _, cl := range ty.Checklists {
			if cl.Phase == "" {
				return fmt.Errorf("typology %s: checklist with empty phase", ty.ID)
			}
			if _, dup := phases[cl.Phase]; dup {
				return fmt.Errorf("typology %s: duplicate checklist phase %s", ty.ID, cl.Phase)
			}
			phases[cl.Phase] = struct{}{}

			for _, item := range cl.Items {
				if item.Name == "" {
					return fmt.Errorf("typology %s: checklist item with empty name", ty.ID)
				}
			}
		}

		for _, rule := range ty.Rules {
			if rule.ID == "" {
				return fmt.Errorf("typology %s: rule with empty id", ty.ID)
			}
			if !rule.Action.Valid() {
				return fmt.Errorf("typology %s: rule %s: unknown action %q", ty.ID, rule.ID, rule.Action)
			}
		}
	}
	return nil
}
