package sourcemap

import (
	"strconv"
	"strings"
	"testing"
)

func TestVLQ(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{v: 0, want: "A"},
		{v: 1, want: "C"},
		{v: -1, want: "D"},
		{v: 15, want: "e"},
		{v: 16, want: "gB"},
		{v: -17, want: "jB"},
		{v: 1000, want: "w+B"},
	}
	for _, tt := range tests {
		var sb strings.Builder
		writeVLQ(&sb, tt.v)
		if sb.String() != tt.want {
			t.Errorf("writeVLQ(%d) = %q, want %q", tt.v, sb.String(), tt.want)
		}
		got, rest, err := readVLQ(tt.want + "X")
		if err != nil || got != tt.v || rest != "X" {
			t.Errorf("readVLQ(%q) = %d, %q, %v", tt.want, got, rest, err)
		}
	}

	if _, _, err := readVLQ("g"); err == nil {
		t.Error("expected error for unterminated value")
	}
	if _, _, err := readVLQ("!"); err == nil {
		t.Error("expected error for bad character")
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("out.css")
	b.Add(1, "a.css", 1)
	b.Add(2, "a.css", 3)
	b.Add(2, "a.css", 4) // same generated line, ignored
	b.Add(4, "b.css", 1)
	b.SetContent(b.AddSource("b.css"), ".bar{}")

	m := b.Map()
	if m.Version != 3 || m.File != "out.css" {
		t.Errorf("unexpected header: %+v", m)
	}
	if len(m.Sources) != 2 || m.Sources[0] != "a.css" || m.Sources[1] != "b.css" {
		t.Errorf("Sources = %v", m.Sources)
	}
	if want := "AAAA;AAEA;;ACFA"; m.Mappings != want {
		t.Errorf("Mappings = %q, want %q", m.Mappings, want)
	}
	if len(m.SourcesContent) != 2 || m.SourcesContent[0] != nil || *m.SourcesContent[1] != ".bar{}" {
		t.Errorf("SourcesContent = %v", m.SourcesContent)
	}

	for _, tt := range []struct {
		line   int
		source string
		orig   int
		ok     bool
	}{
		{1, "a.css", 1, true},
		{2, "a.css", 3, true},
		{3, "", 0, false},
		{4, "b.css", 1, true},
		{5, "", 0, false},
	} {
		source, orig, ok := m.Lookup(tt.line)
		if source != tt.source || orig != tt.orig || ok != tt.ok {
			t.Errorf("Lookup(%d) = %q, %d, %v", tt.line, source, orig, ok)
		}
	}
}

func TestParse(t *testing.T) {
	data := []byte(`{"version":3,"sources":["in.scss"],"names":[],"mappings":"AAAA,EAAE;AACA;;AAEA"}`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for line, want := range map[int]int{1: 1, 2: 2, 4: 4} {
		source, orig, ok := m.Lookup(line)
		if !ok || source != "in.scss" || orig != want {
			t.Errorf("Lookup(%d) = %q, %d, %v, want line %d", line, source, orig, ok, want)
		}
	}

	for _, bad := range []string{
		`{"version":2,"sources":[],"names":[],"mappings":""}`,
		`{"version":3,"sources":["a"],"names":[],"mappings":"AC"}`,
		`{"version":3,"sources":["a"],"names":[],"mappings":"ACAA"}`,
		`{"version":3,"sources":["a"],"names":[],"mappings":"A!AA"}`,
		`not json`,
	} {
		if _, err := Parse([]byte(bad)); err == nil {
			t.Errorf("Parse(%s) expected error", bad)
		}
	}
}

func TestAppend(t *testing.T) {
	first := NewBuilder("")
	first.Add(1, "a.css", 1)
	first.Add(2, "a.css", 5)

	second := NewBuilder("")
	second.Add(1, "b.css", 2)

	out := NewBuilder("all.css")
	if err := out.Append(0, first.Map()); err != nil {
		t.Fatal(err)
	}
	if err := out.Append(2, second.Map()); err != nil {
		t.Fatal(err)
	}
	m := out.Map()

	for line, want := range map[int]string{1: "a.css:1", 2: "a.css:5", 3: "b.css:2"} {
		source, orig, ok := m.Lookup(line)
		if !ok {
			t.Errorf("Lookup(%d) not found", line)
			continue
		}
		if got := source + ":" + strconv.Itoa(orig); got != want {
			t.Errorf("Lookup(%d) = %s, want %s", line, got, want)
		}
	}

	encoded, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if back.Mappings != m.Mappings {
		t.Errorf("mappings changed: %q != %q", back.Mappings, m.Mappings)
	}
}
