package analysis

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	yaml "gopkg.in/yaml.v3"
)

// templateMarkers indicate attribute values computed at render time.
var templateMarkers = []string{"{{", "{%", "<%", "${", "[[", "@{"}

func dynamic(value string) bool {
	for _, m := range templateMarkers {
		if strings.Contains(value, m) {
			return true
		}
	}
	return false
}

// elementBuilder collects facts of one element regardless of markup flavour.
type elementBuilder struct {
	e Element
}

func newElementBuilder(tag string) *elementBuilder {
	b := &elementBuilder{}
	if dynamic(tag) {
		b.e.DynamicTag = true
	} else {
		b.e.Tag = strings.ToLower(tag)
	}
	return b
}

// boundPrefixes mark attributes bound to expressions by template engines.
var boundPrefixes = []string{":", "v-bind:", "x-bind:", "bind:", "th:", "["}

func bound(name string) bool {
	for _, p := range boundPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (b *elementBuilder) attr(name, value string) {
	if dynamic(name) || bound(name) {
		// bound or spread attribute, anything may appear
		b.e.DynamicAttrs = true
		b.e.DynamicClass = true
		b.e.DynamicID = true
		return
	}
	name = strings.ToLower(name)
	if !slices.Contains(b.e.Attributes, name) {
		b.e.Attributes = append(b.e.Attributes, name)
	}
	switch name {
	case "class":
		if dynamic(value) {
			b.e.DynamicClass = true
		}
		for _, c := range strings.Fields(value) {
			if !dynamic(c) && !slices.Contains(b.e.Classes, c) {
				b.e.Classes = append(b.e.Classes, c)
			}
		}
	case "id":
		if dynamic(value) {
			b.e.DynamicID = true
			return
		}
		if id := strings.TrimSpace(value); id != "" {
			b.e.IDs = append(b.e.IDs, id)
		}
	}
}

// LoadHTML extracts element facts from HTML (or HTML based template) markup.
// Template directives between elements are ignored, directives inside
// attribute values make the corresponding facts dynamic.
func LoadHTML(r io.Reader, name string) (Template, error) {
	t := Template{Name: name}

	cr, err := charset.NewReader(r, "text/html")
	if err != nil {
		return t, fmt.Errorf("unable to detect template encoding (%s): %w", name, err)
	}
	doc, err := html.Parse(cr)
	if err != nil {
		return t, fmt.Errorf("unable to parse template (%s): %w", name, err)
	}

	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		b := newElementBuilder(n.Data)
		for _, a := range n.Attr {
			b.attr(a.Key, a.Val)
		}
		t.Elements = append(t.Elements, b.e)
	}
	return t, nil
}

// LoadXML extracts element facts from XHTML, SVG or other XML based markup.
// Unlike HTML, tag names are case sensitive, but selectors match XHTML in
// lower case so names are normalized the same way.
func LoadXML(r io.Reader, name string) (Template, error) {
	t := Template{Name: name}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Permissive = true
	if _, err := doc.ReadFrom(r); err != nil {
		return t, fmt.Errorf("unable to parse template (%s): %w", name, err)
	}

	var visit func(el *etree.Element)
	visit = func(el *etree.Element) {
		b := newElementBuilder(el.Tag)
		for _, a := range el.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				continue
			}
			b.attr(a.Key, a.Value)
		}
		t.Elements = append(t.Elements, b.e)
		for _, child := range el.ChildElements() {
			visit(child)
		}
	}
	if root := doc.Root(); root != nil {
		visit(root)
	}
	return t, nil
}

// factsDocument is a YAML document with precomputed facts produced by an
// external template analyzer.
type factsDocument struct {
	Templates []Template `yaml:"templates"`
}

// LoadFacts reads precomputed template facts from YAML (JSON is accepted as
// well being a subset of YAML).
func LoadFacts(r io.Reader) ([]Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc factsDocument
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode template facts: %w", err)
	}
	for i := range doc.Templates {
		if doc.Templates[i].Name == "" {
			return nil, fmt.Errorf("template facts entry %d has no name", i)
		}
	}
	return doc.Templates, nil
}

// Load reads facts from a file choosing loader by file extension.
func Load(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read template (%s): %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes is Load for content which is already in memory (archives).
func LoadBytes(data []byte, name string) ([]Template, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return LoadFacts(bytes.NewReader(data))
	case ".xhtml", ".svg", ".xml":
		t, err := LoadXML(bytes.NewReader(data), name)
		if err != nil {
			return nil, err
		}
		return []Template{t}, nil
	default:
		t, err := LoadHTML(bytes.NewReader(data), name)
		if err != nil {
			return nil, err
		}
		return []Template{t}, nil
	}
}

// IsTemplate reports whether file name looks like something Load can read.
func IsTemplate(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml", ".svg", ".xml", ".tmpl", ".gohtml", ".vue",
		".yaml", ".yml", ".json":
		return true
	}
	return false
}
