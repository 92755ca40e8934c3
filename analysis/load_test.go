package analysis

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestLoadHTML(t *testing.T) {
	markup := `<!doctype html>
<div class="card shadow" id="main">
  <a href="/" class="link {{ .Extra }}">home</a>
  <span id="{{ .ID }}" data-x="1"></span>
  <p :class="cls"></p>
</div>`

	tmpl, err := LoadHTML(strings.NewReader(markup), "page.html")
	if err != nil {
		t.Fatalf("LoadHTML() error = %v", err)
	}
	if tmpl.Name != "page.html" {
		t.Errorf("Name = %q", tmpl.Name)
	}

	byTag := make(map[string]Element)
	for _, e := range tmpl.Elements {
		byTag[e.Tag] = e
	}

	div, ok := byTag["div"]
	if !ok {
		t.Fatal("div element not found")
	}
	if !slices.Equal(div.Classes, []string{"card", "shadow"}) || !slices.Equal(div.IDs, []string{"main"}) {
		t.Errorf("div facts = %+v", div)
	}
	if a := byTag["a"]; !a.DynamicClass || !slices.Contains(a.Classes, "link") {
		t.Errorf("a facts = %+v", a)
	}
	if span := byTag["span"]; !span.DynamicID || !slices.Contains(span.Attributes, "data-x") {
		t.Errorf("span facts = %+v", span)
	}
	if p := byTag["p"]; !p.DynamicClass {
		t.Errorf("bound class attribute must be dynamic: %+v", p)
	}
	// parser synthesizes document structure
	if _, ok := byTag["body"]; !ok {
		t.Error("expected body element")
	}
}

func TestLoadXML(t *testing.T) {
	markup := `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <body class="book"><p class="epigraph">x</p></body>
</html>`

	tmpl, err := LoadXML(strings.NewReader(markup), "ch1.xhtml")
	if err != nil {
		t.Fatalf("LoadXML() error = %v", err)
	}
	if len(tmpl.Elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(tmpl.Elements))
	}
	if tmpl.Elements[0].Tag != "html" || len(tmpl.Elements[0].Attributes) != 0 {
		t.Errorf("xmlns must not be an attribute: %+v", tmpl.Elements[0])
	}
	if !slices.Equal(tmpl.Elements[2].Classes, []string{"epigraph"}) {
		t.Errorf("p facts = %+v", tmpl.Elements[2])
	}
}

func TestLoadFacts(t *testing.T) {
	doc := `templates:
  - name: button.tmpl
    elements:
      - tag: button
        classes: [btn, btn-primary]
      - tag: span
        dynamic_class: true
`
	templates, err := LoadFacts(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFacts() error = %v", err)
	}
	if len(templates) != 1 || len(templates[0].Elements) != 2 {
		t.Fatalf("unexpected facts: %+v", templates)
	}
	if !templates[0].Elements[1].DynamicClass {
		t.Error("expected dynamic class")
	}

	if _, err := LoadFacts(strings.NewReader("templates:\n  - elements: []\n")); err == nil {
		t.Error("expected error for template without name")
	}
	if _, err := LoadFacts(strings.NewReader("unknown: 1\n")); err == nil {
		t.Error("expected error for unknown fields")
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "a.html")
	if err := os.WriteFile(htmlPath, []byte(`<i class="icon"></i>`), 0644); err != nil {
		t.Fatal(err)
	}
	templates, err := Load(htmlPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	set := NewSet(templates...)
	if !set.UsesClass("icon") {
		t.Error("expected icon class")
	}

	if _, err := Load(filepath.Join(dir, "missing.html")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsTemplate(t *testing.T) {
	for name, want := range map[string]bool{
		"a.html":     true,
		"b.XHTML":    true,
		"facts.yaml": true,
		"style.css":  false,
		"README":     false,
	} {
		if got := IsTemplate(name); got != want {
			t.Errorf("IsTemplate(%q) = %v, want %v", name, got, want)
		}
	}
}
