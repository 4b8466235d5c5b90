package parallel

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DomainOther is the bucket for files matching no classification rule.
// It never counts toward the domain minimum and never gets a parallel task.
const DomainOther = "other"

// Rule maps a domain name to the path patterns that identify it.
// Rules are ordered: the first matching domain wins.
type Rule struct {
	Domain   string
	Patterns []*regexp.Regexp
}

// ruleSpec is the YAML shape for custom rule files:
//
//   - domain: backend
//     patterns:
//   - "^internal/"
//   - "\\.go$"
type ruleSpec struct {
	Domain   string   `yaml:"domain"`
	Patterns []string `yaml:"patterns"`
}

func mustRule(domain string, patterns ...string) Rule {
	r := Rule{Domain: domain, Patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile("(?i)"+p))
	}
	return r
}

// DefaultRules returns the built-in domain classification rules. Order
// matters: earlier domains take precedence for files matching several.
func DefaultRules() []Rule {
	return []Rule{
		mustRule("backend",
			`^src/backend/`,
			`^src/api/`,
			`^src/services/`,
			`^src/models/`,
			`^backend/`,
			`^api/`,
			`^services/`,
			`^models/`,
			`\.service\.py$`,
			`\.controller\.py$`,
			`\.router\.py$`,
		),
		mustRule("frontend",
			`^src/frontend/`,
			`^src/components/`,
			`^src/pages/`,
			`^src/ui/`,
			`^frontend/`,
			`^components/`,
			`^pages/`,
			`^ui/`,
			`\.tsx?$`,
			`\.jsx?$`,
			`\.vue$`,
			`\.svelte$`,
		),
		mustRule("database",
			`^migrations/`,
			`^alembic/`,
			`^src/database/`,
			`^src/schemas/`,
			`^database/`,
			`^schemas/`,
			`migration.*\.py$`,
			`\.sql$`,
		),
		mustRule("tests",
			`^tests/`,
			`^test/`,
			`test_.*\.py$`,
			`.*_test\.py$`,
			`\.test\.ts$`,
			`\.spec\.ts$`,
		),
		mustRule("docs",
			`^docs/`,
			`^documentation/`,
			`README.*\.md$`,
			`\.md$`,
			`\.rst$`,
		),
	}
}

// LoadRules reads an ordered rule list from a YAML file. The file fully
// replaces the built-in rules.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var specs []ruleSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("rules file %s defines no domains", path)
	}

	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if spec.Domain == "" {
			return nil, fmt.Errorf("rules file %s: rule with empty domain", path)
		}
		if spec.Domain == DomainOther {
			return nil, fmt.Errorf("rules file %s: %q is reserved", path, DomainOther)
		}
		r := Rule{Domain: spec.Domain, Patterns: make([]*regexp.Regexp, 0, len(spec.Patterns))}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("rules file %s: domain %s: %w", path, spec.Domain, err)
			}
			r.Patterns = append(r.Patterns, re)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
