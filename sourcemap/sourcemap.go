// Package sourcemap reads and writes version 3 source maps. Only line level
// precision is kept: optimized stylesheets are printed one rule per line, so
// the first segment of every generated line is all that matters.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Map is a version 3 source map document.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`

	once    sync.Once
	decoded [][]Segment
	err     error
}

// Segment is a decoded mapping. All numbers are 0-based as in the encoding.
type Segment struct {
	GeneratedColumn int
	Source          int
	Line            int
	Column          int
}

// Parse decodes source map JSON.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unable to parse source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	if _, err := m.Segments(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Segments returns decoded mappings indexed by 0-based generated line.
func (m *Map) Segments() ([][]Segment, error) {
	m.once.Do(func() {
		m.decoded, m.err = decode(m.Mappings, len(m.Sources))
	})
	return m.decoded, m.err
}

func decode(mappings string, sources int) ([][]Segment, error) {
	var (
		lines                [][]Segment
		source, line, column int
		err                  error
	)
	for lineText := range strings.SplitSeq(mappings, ";") {
		var (
			segments []Segment
			genCol   int
		)
		for segText := range strings.SplitSeq(lineText, ",") {
			if segText == "" {
				continue
			}
			var fields [5]int
			n := 0
			for rest := segText; rest != ""; n++ {
				if n == len(fields) {
					return nil, fmt.Errorf("source map segment %q has too many fields", segText)
				}
				if fields[n], rest, err = readVLQ(rest); err != nil {
					return nil, fmt.Errorf("source map segment %q: %w", segText, err)
				}
			}
			genCol += fields[0]
			if n == 1 {
				// generated column only, nothing to map to
				continue
			}
			if n < 4 {
				return nil, fmt.Errorf("source map segment %q has %d fields", segText, n)
			}
			source += fields[1]
			line += fields[2]
			column += fields[3]
			if source < 0 || source >= sources || line < 0 || column < 0 {
				return nil, fmt.Errorf("source map segment %q points outside of sources", segText)
			}
			segments = append(segments, Segment{GeneratedColumn: genCol, Source: source, Line: line, Column: column})
		}
		lines = append(lines, segments)
	}
	return lines, nil
}

// Lookup returns original position of a generated line (1-based in and out).
func (m *Map) Lookup(line int) (source string, original int, ok bool) {
	lines, err := m.Segments()
	if err != nil || line < 1 || line > len(lines) || len(lines[line-1]) == 0 {
		return "", 0, false
	}
	seg := lines[line-1][0]
	return m.Sources[seg.Source], seg.Line + 1, true
}

// Marshal encodes map as JSON.
func (m *Map) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

type mapping struct {
	generated int // 0-based
	source    int
	line      int // 0-based
}

// Builder accumulates line mappings and produces Map.
type Builder struct {
	file     string
	sources  []string
	contents []*string
	index    map[string]int
	mappings []mapping
}

func NewBuilder(file string) *Builder {
	return &Builder{file: file, index: make(map[string]int)}
}

// AddSource registers source file returning its index. Registering the same
// name again returns existing index.
func (b *Builder) AddSource(name string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	b.index[name] = len(b.sources)
	b.sources = append(b.sources, name)
	b.contents = append(b.contents, nil)
	return len(b.sources) - 1
}

// SetContent embeds source text into the map.
func (b *Builder) SetContent(source int, content string) {
	b.contents[source] = &content
}

// Add maps beginning of generated line to original line, both 1-based.
func (b *Builder) Add(generated int, source string, original int) {
	if generated < 1 || original < 1 {
		return
	}
	b.mappings = append(b.mappings, mapping{generated: generated - 1, source: b.AddSource(source), line: original - 1})
}

// Append adds all line mappings of m shifted down by offset lines. This is
// how maps of concatenated files are merged.
func (b *Builder) Append(offset int, m *Map) error {
	lines, err := m.Segments()
	if err != nil {
		return err
	}
	for i, segments := range lines {
		if len(segments) == 0 {
			continue
		}
		seg := segments[0]
		source := b.AddSource(m.Sources[seg.Source])
		if seg.Source < len(m.SourcesContent) && m.SourcesContent[seg.Source] != nil && b.contents[source] == nil {
			b.contents[source] = m.SourcesContent[seg.Source]
		}
		b.mappings = append(b.mappings, mapping{generated: offset + i, source: source, line: seg.Line})
	}
	return nil
}

// Map encodes accumulated mappings.
func (b *Builder) Map() *Map {
	sort.SliceStable(b.mappings, func(i, j int) bool {
		return b.mappings[i].generated < b.mappings[j].generated
	})

	var (
		sb                   strings.Builder
		line                 int
		prevSource, prevLine int
	)
	lastGenLine := -1
	for _, mp := range b.mappings {
		if mp.generated == lastGenLine {
			// line level precision, first mapping of the line wins
			continue
		}
		for line < mp.generated {
			sb.WriteByte(';')
			line++
		}
		writeVLQ(&sb, 0)
		writeVLQ(&sb, mp.source-prevSource)
		writeVLQ(&sb, mp.line-prevLine)
		writeVLQ(&sb, 0)
		prevSource, prevLine = mp.source, mp.line
		lastGenLine = mp.generated
	}

	m := &Map{
		Version:  3,
		File:     b.file,
		Sources:  append([]string{}, b.sources...),
		Names:    []string{},
		Mappings: sb.String(),
	}
	for _, c := range b.contents {
		if c != nil {
			m.SourcesContent = append([]*string{}, b.contents...)
			break
		}
	}
	return m
}
