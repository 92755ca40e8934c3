package selector

import (
	"fmt"
	"sync"
	"testing"

	"cssopt/analysis"
)

func TestCache_ComputeOnce(t *testing.T) {
	c := NewCache()

	const workers = 16
	results := make([]*Entry, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// differently spelled, same normalized key
			text := ".menu > li"
			if i%2 == 1 {
				text = ".menu   >   li"
			}
			e, err := c.Query(text)
			if err != nil {
				t.Errorf("Query() error = %v", err)
				return
			}
			results[i] = e
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d got a different entry", i)
		}
	}
	hits, computed := c.Stats()
	if computed != 1 {
		t.Errorf("computed = %d, want 1", computed)
	}
	if hits != workers-1 {
		t.Errorf("hits = %d, want %d", hits, workers-1)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_OrderIndependent(t *testing.T) {
	selectors := make([]string, 0, 20)
	for i := range 20 {
		selectors = append(selectors, fmt.Sprintf(".c%d:hover > #i%d", i, i))
	}

	forward, backward := NewCache(), NewCache()
	for _, s := range selectors {
		if _, err := forward.Query(s); err != nil {
			t.Fatal(err)
		}
	}
	for i := len(selectors) - 1; i >= 0; i-- {
		if _, err := backward.Query(selectors[i]); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range selectors {
		a, _ := forward.Query(s)
		b, _ := backward.Query(s)
		if a.Text != b.Text || a.Specificity != b.Specificity || len(a.Compounds) != len(b.Compounds) {
			t.Errorf("entries for %q differ", s)
		}
	}
}

func TestCache_ErrorsMemoized(t *testing.T) {
	c := NewCache()
	_, err1 := c.Query("a >")
	_, err2 := c.Query("a  >")
	if err1 == nil || err2 == nil {
		t.Fatal("expected errors")
	}
	if err1 != err2 {
		t.Error("expected the same memoized error")
	}
	if _, computed := c.Stats(); computed != 1 {
		t.Errorf("computed = %d, want 1", computed)
	}
}

func TestCache_Exclusive(t *testing.T) {
	facts := analysis.NewSet(analysis.Template{Name: "t.html", Elements: []analysis.Element{
		{Tag: "div", Classes: []string{"foo"}},
		{Tag: "div", Classes: []string{"bar", "baz"}},
	}})
	c := NewCache()

	tests := []struct {
		a, b  string
		facts *analysis.Set
		want  bool
	}{
		{a: "p", b: "span", want: true},
		{a: "#a", b: "#b", want: true},
		{a: ".x", b: ".x::before", want: true},
		{a: ".x", b: ".y", want: false},
		{a: ".foo", b: ".bar", facts: facts, want: true},
		{a: ".bar", b: ".baz", facts: facts, want: false},
		{a: "div .foo", b: "section .bar", facts: facts, want: true},
		{a: ".foo", b: ".unknown", facts: facts, want: true},
		{a: ".foo", b: "a >", facts: facts, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			if got := c.Exclusive(tt.a, tt.b, tt.facts); got != tt.want {
				t.Errorf("Exclusive(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := c.Exclusive(tt.b, tt.a, tt.facts); got != tt.want {
				t.Errorf("Exclusive(%q, %q) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
