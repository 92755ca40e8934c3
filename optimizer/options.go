package optimizer

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/multierr"
	"golang.org/x/text/encoding"

	"cssopt/common"
	"cssopt/config"
	"cssopt/passes"
)

// Options is the complete configuration of the optimizer.
type Options struct {
	// Enabled false turns optimizer into parse and print.
	Enabled bool
	// Concurrency limits number of files processed at once during single
	// file phase, 0 means number of CPUs.
	Concurrency int
	// RenameMode enables rename-idents pass when not none.
	RenameMode common.RenameMode
	// Order of passes inside each phase, empty means declaration order of
	// common.Kind.
	Order []common.Kind
	// Passes lists enabled passes with their configuration. Entry of
	// rename-idents only provides exclusions, the pass itself is controlled
	// by RenameMode.
	Passes map[common.Kind]passes.Config
	// Minify selects compact printer (one rule per line) over readable one.
	Minify bool
	// SourceMap requests merged source map of the output.
	SourceMap bool
	// OutputName is text/template (slim-sprig functions available) for
	// output file name, see NameValues.
	OutputName string
	// Charset is used for sources without BOM or @charset, nil means UTF-8.
	Charset encoding.Encoding
}

// DefaultOptions mirrors defaults of the configuration template.
func DefaultOptions() Options {
	return Options{
		Enabled:    true,
		RenameMode: common.RenameModeNone,
		Order:      common.KindValues(),
		Passes: map[common.Kind]passes.Config{
			common.KindRemoveUnused:       {Safelist: []string{"html", "body"}},
			common.KindDedupeDeclarations: {},
			common.KindMergeAdjacent:      {},
			common.KindCompactValues:      {},
			common.KindShareDeclarations:  {},
		},
		Minify:     true,
		SourceMap:  true,
		OutputName: "{{ .SourceFile }}.min",
	}
}

// FromConfig builds options from loaded program configuration.
func FromConfig(opt *config.OptimizerConfig, out *config.OutputConfig) Options {
	o := Options{
		Enabled:     opt.Enabled,
		Concurrency: opt.Concurrency,
		RenameMode:  opt.Rename,
		Order:       slices.Clone(opt.Order),
		Passes:      make(map[common.Kind]passes.Config),
		Minify:      out.Minify,
		SourceMap:   out.SourceMap,
		OutputName:  out.NameTemplate,
	}
	for _, kind := range common.KindValues() {
		pc := opt.Passes.Pass(kind)
		if !pc.Enabled && kind != common.KindRenameIdents {
			continue
		}
		o.Passes[kind] = passes.Config{
			Safelist:  slices.Clone(pc.Safelist),
			Precision: pc.Precision,
			Exclude:   slices.Clone(pc.Exclude),
		}
	}
	return o
}

// ConfigError reports every problem found in options at once.
type ConfigError struct {
	Err error // combined with multierr
}

func (e *ConfigError) Error() string {
	return "invalid optimizer configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Problems returns individual configuration problems.
func (e *ConfigError) Problems() []error {
	return multierr.Errors(e.Err)
}

var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*\*?$`)

// checkPattern validates safelist and exclude entries: ".class", "#id" or
// tag, optionally ending with "*".
func checkPattern(entry string) error {
	switch {
	case entry == "":
		return fmt.Errorf("empty pattern")
	case strings.ContainsAny(entry, " \t\r\n"):
		return fmt.Errorf("pattern %q contains whitespace", entry)
	case strings.Contains(strings.TrimSuffix(entry, "*"), "*"):
		return fmt.Errorf("pattern %q may only end with \"*\"", entry)
	case entry[0] == '.' || entry[0] == '#':
		if len(entry) == 1 {
			return fmt.Errorf("pattern %q has no name", entry)
		}
		return nil
	case !tagPattern.MatchString(entry):
		return fmt.Errorf("pattern %q is not a class, id or tag", entry)
	}
	return nil
}

// enabled returns kinds of passes to run.
func (o Options) enabled() []common.Kind {
	var kinds []common.Kind
	for kind := range o.Passes {
		if kind != common.KindRenameIdents {
			kinds = append(kinds, kind)
		}
	}
	if o.RenameMode != common.RenameModeNone {
		kinds = append(kinds, common.KindRenameIdents)
	}
	slices.Sort(kinds)
	return kinds
}

// order returns enabled kinds in configured order.
func (o Options) order() []common.Kind {
	order := o.Order
	if len(order) == 0 {
		order = common.KindValues()
	}
	enabled := o.enabled()
	out := make([]common.Kind, 0, len(enabled))
	for _, kind := range order {
		if slices.Contains(enabled, kind) {
			out = append(out, kind)
		}
	}
	return out
}

func parseNameTemplate(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("output name template is empty")
	}
	tmpl, err := template.New(string(config.OutputNameTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse output name template: %w", err)
	}
	return tmpl, nil
}

// Validate checks options and returns *ConfigError listing every problem.
func (o Options) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if o.Concurrency < 0 {
		add("concurrency must not be negative, got %d", o.Concurrency)
	}
	if !o.RenameMode.IsValid() {
		add("unknown rename mode %d", o.RenameMode)
	}

	for _, kind := range slices.Sorted(maps.Keys(o.Passes)) {
		cfg := o.Passes[kind]
		if !kind.IsValid() {
			add("unknown optimization kind %d", kind)
			continue
		}
		if cfg.Precision < 0 {
			add("%s: precision must not be negative, got %d", kind, cfg.Precision)
		}
		for _, entry := range cfg.Safelist {
			if err := checkPattern(entry); err != nil {
				add("%s: safelist: %w", kind, err)
			}
		}
		for _, entry := range cfg.Exclude {
			if err := checkPattern(entry); err != nil {
				add("%s: exclude: %w", kind, err)
			}
		}
	}

	if len(o.Order) > 0 {
		seen := make(map[common.Kind]bool)
		for _, kind := range o.Order {
			switch {
			case !kind.IsValid():
				add("order: unknown optimization kind %d", kind)
			case seen[kind]:
				add("order: %s is listed more than once", kind)
			}
			seen[kind] = true
		}
		for _, kind := range o.enabled() {
			if kind.IsValid() && !seen[kind] {
				add("order: enabled pass %s is not listed", kind)
			}
		}
	}

	if _, err := parseNameTemplate(o.OutputName); err != nil {
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		return &ConfigError{Err: errs}
	}
	return nil
}
