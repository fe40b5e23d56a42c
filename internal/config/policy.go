package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Policy selects resolution strategies per field, for callers that need
// something other than the conflict kind's default.
type Policy struct {
	Defaults PolicyDefaults         `yaml:"defaults"`
	Fields   map[string]FieldPolicy `yaml:"fields"`
}

// PolicyDefaults holds settings shared by every field.
type PolicyDefaults struct {
	SourcePriorities map[string]int `yaml:"source_priorities"`
}

// FieldPolicy overrides resolution for a single field. An empty Strategy
// keeps the conflict kind's default.
type FieldPolicy struct {
	Strategy         model.Strategy `yaml:"strategy"`
	SourcePriorities map[string]int `yaml:"source_priorities,omitempty"`
}

// LoadPolicy reads a resolution policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	// The YAML has a top-level "policy" key
	var wrapper struct {
		Policy Policy `yaml:"policy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "policy: parse")
	}

	p := &wrapper.Policy
	for field, fp := range p.Fields {
		if fp.Strategy != "" {
			s, err := model.ParseStrategy(string(fp.Strategy))
			if err != nil {
				return nil, eris.Wrapf(err, "policy: field %s", field)
			}
			fp.Strategy = s
		}
		if len(fp.SourcePriorities) == 0 {
			fp.SourcePriorities = p.Defaults.SourcePriorities
		}
		p.Fields[field] = fp
	}

	return p, nil
}

// ForField returns the policy for a field, falling back to defaults.
func (p *Policy) ForField(field string) FieldPolicy {
	if p == nil {
		return FieldPolicy{}
	}
	if fp, ok := p.Fields[field]; ok {
		return fp
	}
	return FieldPolicy{SourcePriorities: p.Defaults.SourcePriorities}
}
