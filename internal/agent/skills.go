package agent

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/janburzinski/notra/common"
)

//go:embed skills/*.md
var skillFS embed.FS

var ErrSkillNotFound = errors.New("skill not found")

var frontMatterDelim = []byte("---")

type Skill struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
	Content     string   `yaml:"-" json:"content"`
}

// SkillRegistry is an immutable set of markdown skills keyed by slug.
type SkillRegistry struct {
	skills map[string]Skill
}

// DefaultSkills loads the skills embedded in the binary.
func DefaultSkills() (*SkillRegistry, error) {
	return LoadSkills(skillFS, "skills")
}

// LoadSkills reads every *.md file in dir. Each file must start with YAML
// front matter carrying at least a name.
func LoadSkills(fsys fs.FS, dir string) (*SkillRegistry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read skills dir: %w", err)
	}

	reg := &SkillRegistry{skills: make(map[string]Skill, len(entries))}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read skill %s: %w", e.Name(), err)
		}
		skill, err := parseSkill(raw)
		if err != nil {
			return nil, fmt.Errorf("parse skill %s: %w", e.Name(), err)
		}
		key := common.SlugOf(skill.Name)
		if _, dup := reg.skills[key]; dup {
			return nil, fmt.Errorf("duplicate skill %q", skill.Name)
		}
		reg.skills[key] = skill
	}
	return reg, nil
}

func parseSkill(raw []byte) (Skill, error) {
	rest, ok := bytes.CutPrefix(bytes.TrimLeft(raw, "\ufeff\r\n "), frontMatterDelim)
	if !ok {
		return Skill{}, errors.New("missing front matter")
	}
	header, body, ok := bytes.Cut(rest, append([]byte("\n"), frontMatterDelim...))
	if !ok {
		return Skill{}, errors.New("unterminated front matter")
	}

	var skill Skill
	if err := yaml.Unmarshal(header, &skill); err != nil {
		return Skill{}, fmt.Errorf("front matter: %w", err)
	}
	if common.SlugOf(skill.Name) == "" {
		return Skill{}, errors.New("skill name is required")
	}
	skill.Content = string(bytes.TrimSpace(body))
	return skill, nil
}

// List returns skills without content, sorted by name.
func (r *SkillRegistry) List() []Skill {
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		s.Content = ""
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks a skill up by name, ignoring case and punctuation.
func (r *SkillRegistry) Get(name string) (Skill, error) {
	if s, ok := r.skills[common.SlugOf(name)]; ok {
		return s, nil
	}
	return Skill{}, fmt.Errorf("%w: %q", ErrSkillNotFound, name)
}
