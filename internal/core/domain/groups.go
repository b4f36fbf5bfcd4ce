package domain

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var defaultGroupsYAML []byte

// Group is one drafting group: the namespace within which entity numbers
// are unique and the scope token used by import and export.
type Group struct {
	Token string `yaml:"token" json:"token"`
	Name  string `yaml:"name" json:"name"`
}

// GroupRegistry is the fixed enumerated set of groups the identity grammar
// accepts. It is loaded once at startup and never mutated afterwards.
type GroupRegistry struct {
	groups map[string]Group
}

type groupsFile struct {
	Groups []Group `yaml:"groups"`
}

// LoadGroupRegistry parses a YAML group registry document.
func LoadGroupRegistry(data []byte) (*GroupRegistry, error) {
	var f groupsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse group registry: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("group registry: %w: no groups defined", ErrInvalidInput)
	}

	reg := &GroupRegistry{groups: make(map[string]Group, len(f.Groups))}
	for _, g := range f.Groups {
		if !validGroupToken(g.Token) {
			return nil, fmt.Errorf("group registry: malformed token %q", g.Token)
		}
		if _, dup := reg.groups[g.Token]; dup {
			return nil, fmt.Errorf("group registry: duplicate token %q", g.Token)
		}
		reg.groups[g.Token] = g
	}
	return reg, nil
}

// LoadGroupRegistryFile loads the registry from path, or the embedded
// default set when path is empty.
func LoadGroupRegistryFile(path string) (*GroupRegistry, error) {
	if path == "" {
		return LoadGroupRegistry(defaultGroupsYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read group registry: %w", err)
	}
	return LoadGroupRegistry(data)
}

// Valid reports whether token names a configured group.
func (r *GroupRegistry) Valid(token string) bool {
	_, ok := r.groups[token]
	return ok
}

// Get returns the group for token.
func (r *GroupRegistry) Get(token string) (Group, error) {
	g, ok := r.groups[token]
	if !ok {
		return Group{}, fmt.Errorf("%w: %q", ErrUnknownGroup, token)
	}
	return g, nil
}

// Tokens returns all configured group tokens, sorted.
func (r *GroupRegistry) Tokens() []string {
	tokens := make([]string, 0, len(r.groups))
	for t := range r.groups {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
