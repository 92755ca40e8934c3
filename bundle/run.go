// Package bundle implements "optimize" command: it finds stylesheets and
// templates, runs optimizer and writes results.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"cssopt/config"
	"cssopt/optimizer"
	"cssopt/pass"
	"cssopt/state"
	"cssopt/store"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("optimize")

	srcs := cmd.Args().Slice()
	if len(srcs) == 0 {
		return errors.New("no input source has been specified")
	}

	dst := cmd.String("out")
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	// stylesheets without BOM or @charset are UTF-8 unless told otherwise
	cp := cmd.String("charset")
	if len(cp) == 0 {
		cp = env.Cfg.Output.Charset
	}
	if len(cp) > 0 {
		env.Charset, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.Charset == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.Charset = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.Charset)
			log.Debug("Forcefully decoding stylesheets", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.Strings("sources", srcs), zap.String("destination", dst), zap.Stringer("session", env.Session()))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, srcs, cmd.StringSlice("templates"), dst, cmd.Bool("overwrite"), log)
}

// process handles optimization independently of CLI framework.
func process(ctx context.Context, srcs, templates []string, dst string, overwrite bool, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	sources, err := collectSources(ctx, srcs, log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no stylesheets to process")
	}
	facts, err := collectTemplates(ctx, templates, log)
	if err != nil {
		return fmt.Errorf("unable to load templates: %w", err)
	}
	if facts.Empty() {
		log.Info("No template facts, unused rules will be kept")
	}

	opts := optimizer.FromConfig(&env.Cfg.Optimizer, &env.Cfg.Output)
	opts.Charset = env.Charset

	var options []optimizer.Option
	if env.Rpt != nil {
		options = append(options, optimizer.WithInspector(func(stage optimizer.Stage, f *pass.File) {
			name := fmt.Sprintf("rules/%s/%03d-%s.txt", stage, f.Index, slug.Make(f.Filename))
			env.Rpt.StoreData(name, []byte(f.Sheet.Dump()))
		}))
	}

	o, err := optimizer.New(opts, env.Log, options...)
	if err != nil {
		return err
	}
	res, err := o.Optimize(ctx, sources, facts)
	if err != nil {
		return fmt.Errorf("unable to optimize stylesheets: %w", err)
	}

	if env.Rpt != nil {
		env.Rpt.StoreData("mapping.txt", []byte(res.Mapping.Dump()))
	}

	files, err := writeResult(res, dst, &env.Cfg.Output, overwrite, log)
	if err != nil {
		return err
	}
	for _, f := range files {
		env.Rpt.Store("output/"+filepath.Base(f), f)
	}

	if env.Cfg.Output.Database != "" {
		if err := record(res, files[0], env.Cfg.Output.Database, log); err != nil {
			return err
		}
	}
	return nil
}

// prepareOutput checks if file may be written.
func prepareOutput(name string, overwrite bool, log *zap.Logger) error {
	_, err := os.Stat(name)
	switch {
	case err == nil:
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
	case !os.IsNotExist(err):
		return err
	}
	return nil
}

// writeResult writes stylesheet, its source map and style mapping next to
// each other. Returned list always starts with the stylesheet.
func writeResult(res *optimizer.Result, dst string, cfg *config.OutputConfig, overwrite bool, log *zap.Logger) ([]string, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}

	cssName := filepath.Join(dst, config.CleanFileName(res.Output.Filename))
	mapName := cssName + ".map"
	mappingName := strings.TrimSuffix(cssName, filepath.Ext(cssName)) + ".mapping.json"

	type output struct {
		name string
		data []byte
	}
	content := res.Output.Content

	var outputs []output
	if res.Output.SourceMap != nil {
		data, err := res.Output.SourceMap.Marshal()
		if err != nil {
			return nil, fmt.Errorf("unable to encode source map: %w", err)
		}
		content += fmt.Sprintf("/*# sourceMappingURL=%s */\n", filepath.Base(mapName))
		outputs = append(outputs, output{name: mapName, data: data})
	}
	if cfg.Mapping {
		data, err := json.MarshalIndent(res.Mapping, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("unable to encode style mapping: %w", err)
		}
		outputs = append(outputs, output{name: mappingName, data: data})
	}
	outputs = append([]output{{name: cssName, data: []byte(content)}}, outputs...)

	for _, out := range outputs {
		if err := prepareOutput(out.name, overwrite, log); err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := os.WriteFile(out.name, out.data, 0644); err != nil {
			return nil, fmt.Errorf("unable to write output: %w", err)
		}
		log.Debug("Output written", zap.String("file", out.name), zap.Int("bytes", len(out.data)))
		files = append(files, out.name)
	}
	return files, nil
}

// record saves style mapping into provenance database.
func record(res *optimizer.Result, output, database string, log *zap.Logger) error {
	db, err := store.Open(database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Save(res.RunID, output, res.Mapping); err != nil {
		return fmt.Errorf("unable to record style mapping: %w", err)
	}
	log.Debug("Style mapping recorded", zap.String("database", database), zap.Stringer("run", res.RunID))
	return nil
}
