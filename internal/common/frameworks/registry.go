// Package frameworks holds the static slot tables of the supported research-question frameworks.
package frameworks

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFramework is returned (non-fatally) when no schema exists for a framework.
var ErrUnknownFramework = errors.New("UNKNOWN_FRAMEWORK")

//go:embed frameworks.yaml
var defaultData []byte

type Slot struct {
	Code    string `yaml:"code"`
	Element string `yaml:"element"`
}

type document struct {
	Frameworks []struct {
		Name  string `yaml:"name"`
		Slots []Slot `yaml:"slots"`
	} `yaml:"frameworks"`
}

// Schema is the immutable slot table of one framework.
type Schema struct {
	name          string
	slotCodes     []string
	slotToElement map[string]string
}

func (s Schema) Name() string { return s.name }

// SlotCodes returns the declared codes in display order.
func (s Schema) SlotCodes() []string {
	return append([]string(nil), s.slotCodes...)
}

func (s Schema) HasSlot(code string) bool {
	_, ok := s.slotToElement[code]
	return ok
}

// ElementName returns the canonical element name for a code, or "" if undeclared.
func (s Schema) ElementName(code string) string {
	return s.slotToElement[code]
}

// Registry maps framework names (case-insensitive) to schemas. It is read-only after construction.
type Registry struct {
	schemas map[string]Schema
	names   []string
}

// Default loads the embedded framework table. It panics on malformed embedded data.
func Default() *Registry {
	r, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("frameworks: embedded registry is invalid: %v", err))
	}
	return r
}

// Parse builds a registry from YAML. Duplicate frameworks or slot codes are rejected.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse framework registry: %w", err)
	}

	r := &Registry{schemas: make(map[string]Schema, len(doc.Frameworks))}
	for _, fw := range doc.Frameworks {
		name := strings.TrimSpace(fw.Name)
		if name == "" {
			return nil, errors.New("framework without name")
		}
		key := strings.ToLower(name)
		if _, dup := r.schemas[key]; dup {
			return nil, fmt.Errorf("duplicate framework %q", name)
		}
		if len(fw.Slots) == 0 {
			return nil, fmt.Errorf("framework %q declares no slots", name)
		}

		schema := Schema{
			name:          name,
			slotCodes:     make([]string, 0, len(fw.Slots)),
			slotToElement: make(map[string]string, len(fw.Slots)),
		}
		for _, slot := range fw.Slots {
			if slot.Code == "" {
				return nil, fmt.Errorf("framework %q has an empty slot code", name)
			}
			if _, dup := schema.slotToElement[slot.Code]; dup {
				return nil, fmt.Errorf("framework %q declares slot %q twice", name, slot.Code)
			}
			schema.slotCodes = append(schema.slotCodes, slot.Code)
			schema.slotToElement[slot.Code] = slot.Element
		}
		r.schemas[key] = schema
		r.names = append(r.names, name)
	}
	return r, nil
}

// Lookup finds a schema by framework name, ignoring case and surrounding spaces.
func (r *Registry) Lookup(framework string) (Schema, bool) {
	s, ok := r.schemas[strings.ToLower(strings.TrimSpace(framework))]
	return s, ok
}

// Names lists the registered frameworks in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// ValidElements keeps only the entries whose key is a declared slot code of framework.
// Codes are matched exactly and never renamed. For an unknown framework the input is
// returned unchanged (as a copy) together with ErrUnknownFramework.
func (r *Registry) ValidElements(framework string, elements map[string]string) (map[string]string, []string, error) {
	schema, ok := r.Lookup(framework)
	if !ok {
		out := make(map[string]string, len(elements))
		for k, v := range elements {
			out[k] = v
		}
		return out, nil, fmt.Errorf("%w: %q", ErrUnknownFramework, framework)
	}

	kept := make(map[string]string, len(elements))
	var dropped []string
	for code, text := range elements {
		if schema.HasSlot(code) {
			kept[code] = text
			continue
		}
		dropped = append(dropped, code)
	}
	sort.Strings(dropped)
	return kept, dropped, nil
}

// OrderedCodes returns the codes present in elements, in slot order for a known
// framework and lexical order otherwise.
func (r *Registry) OrderedCodes(framework string, elements map[string]string) []string {
	codes := make([]string, 0, len(elements))
	if schema, ok := r.Lookup(framework); ok {
		for _, code := range schema.slotCodes {
			if _, present := elements[code]; present {
				codes = append(codes, code)
			}
		}
		return codes
	}
	for code := range elements {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
