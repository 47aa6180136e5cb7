package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Skill is a named instruction pack the planner can select for an issue.
// Selected skills have their instructions injected into the execution
// system prompt.
type Skill struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
}

type skillsFile struct {
	Skills []Skill `yaml:"skills"`
}

// LoadSkills reads a YAML skill-pack file of the form:
//
//	skills:
//	  - name: research
//	    description: Structured research methodology
//	    instructions: |
//	      Before acting, enumerate what you know and what you need.
//
// A missing file returns no skills and no error so config can point at
// an optional path.
func LoadSkills(path string) ([]Skill, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read skills file: %w", err)
	}

	var parsed skillsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse skills file %s: %w", path, err)
	}

	for i, s := range parsed.Skills {
		if s.Name == "" {
			return nil, fmt.Errorf("skills file %s: entry %d has no name", path, i)
		}
	}
	return parsed.Skills, nil
}

// MergeSkills combines skill lists. Later lists override earlier entries
// with the same name; first-seen order is preserved.
func MergeSkills(lists ...[]Skill) []Skill {
	var merged []Skill
	index := make(map[string]int)

	for _, list := range lists {
		for _, s := range list {
			if i, seen := index[s.Name]; seen {
				merged[i] = s
				continue
			}
			index[s.Name] = len(merged)
			merged = append(merged, s)
		}
	}
	return merged
}
