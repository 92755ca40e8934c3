// Package analysis holds read-only facts about how markup templates use
// stylesheets: which tags, classes, ids and attributes can appear together
// on a single element. Optimizer only queries these facts, it never changes
// them.
package analysis

import (
	"slices"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Element describes what is statically known about one element of a
// template. Dynamic flags mean that the corresponding part is computed at
// render time and may take any value.
type Element struct {
	Tag          string   `yaml:"tag,omitempty"`
	Classes      []string `yaml:"classes,omitempty"`
	IDs          []string `yaml:"ids,omitempty"`
	Attributes   []string `yaml:"attributes,omitempty"`
	DynamicTag   bool     `yaml:"dynamic_tag,omitempty"`
	DynamicClass bool     `yaml:"dynamic_class,omitempty"`
	DynamicID    bool     `yaml:"dynamic_id,omitempty"`
	DynamicAttrs bool     `yaml:"dynamic_attributes,omitempty"`
}

// Template is the fact base of a single analyzed template.
type Template struct {
	Name     string    `yaml:"name"`
	Elements []Element `yaml:"elements"`
}

// Requirement is what a compound selector demands from an element.
type Requirement struct {
	Tag        string
	Classes    []string
	IDs        []string
	Attributes []string
}

// Merge returns requirement satisfied only by elements satisfying both.
func (r Requirement) Merge(o Requirement) (Requirement, bool) {
	m := Requirement{Tag: r.Tag}
	if o.Tag != "" {
		if m.Tag != "" && m.Tag != o.Tag {
			return m, false
		}
		m.Tag = o.Tag
	}
	m.Classes = union(r.Classes, o.Classes)
	m.IDs = union(r.IDs, o.IDs)
	m.Attributes = union(r.Attributes, o.Attributes)
	return m, true
}

func (r Requirement) key() string {
	var sb strings.Builder
	sb.WriteString(r.Tag)
	for _, part := range [][]string{r.Classes, r.IDs, r.Attributes} {
		sb.WriteByte('|')
		sb.WriteString(strings.Join(part, " "))
	}
	return sb.String()
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Strings(out)
	return slices.Compact(out)
}

const memoSize = 8192

// Set is an immutable collection of template facts with derived indexes.
// It is safe for concurrent use.
type Set struct {
	templates []Template
	elements  []*Element

	byClass, byID, byTag                map[string][]int
	dynClass, dynID, dynTag             []int
	classes, ids                        map[string]struct{}
	anyDynamicClass, anyDynamicID, some bool

	memo *lru.Cache[string, bool]
}

// NewSet indexes templates. Templates are referenced, not copied - caller
// must not modify them afterwards.
func NewSet(templates ...Template) *Set {
	s := &Set{
		templates: templates,
		byClass:   make(map[string][]int),
		byID:      make(map[string][]int),
		byTag:     make(map[string][]int),
		classes:   make(map[string]struct{}),
		ids:       make(map[string]struct{}),
	}
	s.memo, _ = lru.New[string, bool](memoSize)

	for ti := range templates {
		for ei := range templates[ti].Elements {
			e := &templates[ti].Elements[ei]
			idx := len(s.elements)
			s.elements = append(s.elements, e)
			s.some = true

			if e.DynamicTag {
				s.dynTag = append(s.dynTag, idx)
			} else if e.Tag != "" {
				tag := strings.ToLower(e.Tag)
				s.byTag[tag] = append(s.byTag[tag], idx)
			}
			if e.DynamicClass {
				s.dynClass = append(s.dynClass, idx)
				s.anyDynamicClass = true
			}
			for _, c := range e.Classes {
				s.byClass[c] = append(s.byClass[c], idx)
				s.classes[c] = struct{}{}
			}
			if e.DynamicID {
				s.dynID = append(s.dynID, idx)
				s.anyDynamicID = true
			}
			for _, id := range e.IDs {
				s.byID[id] = append(s.byID[id], idx)
				s.ids[id] = struct{}{}
			}
		}
	}
	return s
}

// Templates returns analyzed templates.
func (s *Set) Templates() []Template {
	if s == nil {
		return nil
	}
	return s.templates
}

// Empty returns true when there are no facts at all. Every query of an empty
// set answers conservatively.
func (s *Set) Empty() bool {
	return s == nil || !s.some
}

// HasDynamicClasses reports whether any element computes its classes at
// render time.
func (s *Set) HasDynamicClasses() bool {
	return s != nil && s.anyDynamicClass
}

// HasDynamicIDs reports whether any element computes its id at render time.
func (s *Set) HasDynamicIDs() bool {
	return s != nil && s.anyDynamicID
}

// Classes returns all statically known class names, sorted.
func (s *Set) Classes() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.classes)
}

// IDs returns all statically known ids, sorted.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.ids)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UsesClass reports whether class can appear on any element.
func (s *Set) UsesClass(name string) bool {
	return s.CanMatch(Requirement{Classes: []string{name}})
}

// UsesID reports whether id can appear on any element.
func (s *Set) UsesID(name string) bool {
	return s.CanMatch(Requirement{IDs: []string{name}})
}

// CanMatch reports whether some element of some template can satisfy the
// requirement. Without facts the answer is always true.
func (s *Set) CanMatch(req Requirement) bool {
	if s.Empty() {
		return true
	}
	key := req.key()
	if v, ok := s.memo.Get(key); ok {
		return v
	}
	v := s.canMatch(req)
	s.memo.Add(key, v)
	return v
}

// CanCoOccur reports whether a single element can satisfy both requirements
// at once, for example whether classes "a" and "b" can ever be on the same
// element.
func (s *Set) CanCoOccur(a, b Requirement) bool {
	if s.Empty() {
		return true
	}
	m, ok := a.Merge(b)
	if !ok {
		return false
	}
	return s.CanMatch(m)
}

func (s *Set) canMatch(req Requirement) bool {
	tag := strings.ToLower(req.Tag)
	for _, idx := range s.candidates(req, tag) {
		if matches(s.elements[idx], req, tag) {
			return true
		}
	}
	return false
}

// candidates narrows elements using the most selective index.
func (s *Set) candidates(req Requirement, tag string) []int {
	var best []int
	found := false
	pick := func(list, dyn []int) {
		cand := make([]int, 0, len(list)+len(dyn))
		cand = append(cand, list...)
		cand = append(cand, dyn...)
		if !found || len(cand) < len(best) {
			best, found = cand, true
		}
	}
	for _, c := range req.Classes {
		pick(s.byClass[c], s.dynClass)
	}
	for _, id := range req.IDs {
		pick(s.byID[id], s.dynID)
	}
	if tag != "" {
		pick(s.byTag[tag], s.dynTag)
	}
	if found {
		return best
	}
	all := make([]int, len(s.elements))
	for i := range all {
		all[i] = i
	}
	return all
}

func matches(e *Element, req Requirement, tag string) bool {
	if tag != "" && !e.DynamicTag && !strings.EqualFold(e.Tag, tag) {
		return false
	}
	if !e.DynamicClass && !containsAll(e.Classes, req.Classes) {
		return false
	}
	if len(req.IDs) > 0 && !e.DynamicID {
		// element has at most one id
		if len(req.IDs) > 1 || !slices.Contains(e.IDs, req.IDs[0]) {
			return false
		}
	}
	if !e.DynamicAttrs {
		for _, a := range req.Attributes {
			switch a {
			case "class":
				if len(e.Classes) == 0 && !e.DynamicClass && !slices.Contains(e.Attributes, a) {
					return false
				}
			case "id":
				if len(e.IDs) == 0 && !e.DynamicID && !slices.Contains(e.Attributes, a) {
					return false
				}
			default:
				if !slices.Contains(e.Attributes, a) {
					return false
				}
			}
		}
	}
	return true
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
