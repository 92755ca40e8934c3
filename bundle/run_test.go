package bundle

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"cssopt/config"
	"cssopt/sourcemap"
	"cssopt/state"
	"cssopt/store"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv, *zap.Logger) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env, logger
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func writeZip(t *testing.T, name string, files []string, content map[string]string) {
	t.Helper()
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for _, n := range files {
		fw, err := w.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content[n])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestProcess_Directory(t *testing.T) {
	ctx, _, log := setupTestEnv(t)

	src := filepath.Join(t.TempDir(), "styles")
	writeFiles(t, src, map[string]string{
		"10.css":     ".ten { top: 1px }",
		"2.css":      ".two { top: 0 }",
		"sub/a.css":  ".gone { top: 2px }",
		"notes.txt":  "not a stylesheet",
		"sub/x.scss": ".ignored { top: 3px }",
	})
	tmpl := filepath.Join(t.TempDir(), "index.html")
	writeFiles(t, filepath.Dir(tmpl), map[string]string{"index.html": `<div class="two ten"></div>`})
	dst := t.TempDir()

	if err := process(ctx, []string{src}, []string{tmpl}, dst, false, log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	out := readFile(t, filepath.Join(dst, "2.min.css"))
	two, ten := strings.Index(out, ".two{top:0}"), strings.Index(out, ".ten{top:1px}")
	if two < 0 || ten < 0 || two > ten {
		t.Errorf("unexpected output order:\n%s", out)
	}
	if strings.Contains(out, ".gone") || strings.Contains(out, ".ignored") {
		t.Errorf("output contains unused or foreign rules:\n%s", out)
	}
	if !strings.Contains(out, "sourceMappingURL=2.min.css.map") {
		t.Errorf("output does not reference its source map:\n%s", out)
	}

	m, err := sourcemap.Parse([]byte(readFile(t, filepath.Join(dst, "2.min.css.map"))))
	if err != nil {
		t.Fatalf("source map: %v", err)
	}
	if src, line, ok := m.Lookup(2); !ok || src != "styles/10.css" || line != 1 {
		t.Errorf("Lookup(2) = %s:%d (%v), want styles/10.css:1", src, line, ok)
	}

	mapping := readFile(t, filepath.Join(dst, "2.min.mapping.json"))
	if !strings.Contains(mapping, `".gone"`) {
		t.Errorf("style mapping does not record removal:\n%s", mapping)
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, _, log := setupTestEnv(t)

	name := filepath.Join(t.TempDir(), "bundle.zip")
	writeZip(t, name, []string{"css/b.css", "css/a.css", "readme.md"}, map[string]string{
		"css/a.css": "a { color: red }",
		"css/b.css": "b { color: blue }",
		"readme.md": "# styles",
	})
	dst := t.TempDir()

	if err := process(ctx, []string{name}, nil, dst, false, log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	out := readFile(t, filepath.Join(dst, "a.min.css"))
	if !strings.HasPrefix(out, "a{color:red}\nb{color:#00f}\n") && !strings.HasPrefix(out, "a{color:red}\nb{color:blue}\n") {
		t.Errorf("unexpected output:\n%s", out)
	}

	m, err := sourcemap.Parse([]byte(readFile(t, filepath.Join(dst, "a.min.css.map"))))
	if err != nil {
		t.Fatalf("source map: %v", err)
	}
	if src, _, ok := m.Lookup(1); !ok || src != "bundle.zip/css/a.css" {
		t.Errorf("Lookup(1) source = %q (%v), want bundle.zip/css/a.css", src, ok)
	}
}

func TestProcess_Overwrite(t *testing.T) {
	ctx, _, log := setupTestEnv(t)

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"site.css": "p { margin: 0 }"})
	dst := t.TempDir()
	file := filepath.Join(src, "site.css")

	if err := process(ctx, []string{file}, nil, dst, false, log); err != nil {
		t.Fatalf("first process() error = %v", err)
	}
	err := process(ctx, []string{file}, nil, dst, false, log)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing output error, got %v", err)
	}
	if err := process(ctx, []string{file}, nil, dst, true, log); err != nil {
		t.Fatalf("process() with overwrite error = %v", err)
	}
}

func TestProcess_Database(t *testing.T) {
	ctx, env, log := setupTestEnv(t)

	db := filepath.Join(t.TempDir(), "provenance.db")
	env.Cfg.Output.Database = db
	env.Cfg.Output.SourceMap = false

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"site.css": "p { margin: 0; margin: 0 }"})
	dst := t.TempDir()

	if err := process(ctx, []string{filepath.Join(src, "site.css")}, nil, dst, false, log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "site.min.css.map")); !os.IsNotExist(err) {
		t.Errorf("source map written when disabled: %v", err)
	}

	s, err := store.Open(db, log)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer s.Close()
	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Output != filepath.Join(dst, "site.min.css") {
		t.Fatalf("unexpected runs %+v", runs)
	}
	removals, err := s.Removals(runs[0].ID)
	if err != nil {
		t.Fatalf("Removals() error = %v", err)
	}
	if len(removals) != 1 || removals[0].From.Declaration == "" {
		t.Errorf("unexpected removals %+v", removals)
	}
}

func TestProcess_Errors(t *testing.T) {
	ctx, _, log := setupTestEnv(t)

	empty := t.TempDir()
	broken := t.TempDir()
	writeFiles(t, broken, map[string]string{"broken.css": "@media print { a { top: 0 }"})

	tests := []struct {
		name string
		srcs []string
		want string
	}{
		{name: "not found", srcs: []string{"/nonexistent/path/site.css"}, want: "input source was not found"},
		{name: "nothing to do", srcs: []string{empty}, want: "no stylesheets to process"},
		{name: "parse failure", srcs: []string{filepath.Join(broken, "broken.css")}, want: "broken.css"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := process(ctx, tt.srcs, nil, t.TempDir(), false, log)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, _, log := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a.css": "a { top: 0 }"})
	err := process(cancelCtx, []string{src}, nil, t.TempDir(), false, log)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestIsArchiveFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"plain.css": "a{top:0}", "empty.css": ""})
	writeZip(t, filepath.Join(dir, "styles.css"), []string{"a.css"}, map[string]string{"a.css": "a{top:0}"})

	tests := map[string]bool{"plain.css": false, "empty.css": false, "styles.css": true}
	for name, want := range tests {
		got, err := isArchiveFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("isArchiveFile(%s) error = %v", name, err)
		}
		if got != want {
			t.Errorf("isArchiveFile(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestReadStylesheet_SourceMap(t *testing.T) {
	_, _, log := setupTestEnv(t)
	dir := t.TempDir()

	b := sourcemap.NewBuilder("site.css")
	b.Add(1, "site.scss", 7)
	data, err := b.Map().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	writeFiles(t, dir, map[string]string{
		"site.css":      "a { top: 0 }",
		"site.css.map":  string(data),
		"other.css":     "b { top: 0 }",
		"other.css.map": "{ broken",
	})

	src, err := readStylesheet(filepath.Join(dir, "site.css"), "site.css", log)
	if err != nil {
		t.Fatalf("readStylesheet() error = %v", err)
	}
	if src.Map == nil || len(src.Map.Sources) != 1 || src.Map.Sources[0] != "site.scss" {
		t.Errorf("input source map was not loaded: %+v", src.Map)
	}

	src, err = readStylesheet(filepath.Join(dir, "other.css"), "other.css", log)
	if err != nil {
		t.Fatalf("readStylesheet() error = %v", err)
	}
	if src.Map != nil {
		t.Error("broken source map was used")
	}
}
