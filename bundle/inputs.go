package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/archive"
	"cssopt/optimizer"
	"cssopt/sourcemap"
)

// maxEntrySize limits size of a single file read from archive.
const maxEntrySize = 64 << 20

// isArchiveFile checks file signature rather than extension.
func isArchiveFile(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

func naturalOrder(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}

// walkDir returns files under dir accepted by match, relative to dir and
// slash separated, in natural order. Symbolic links are not followed.
func walkDir(ctx context.Context, dir string, match func(name string) bool, log *zap.Logger) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() || !match(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(names, naturalOrder)
	return names, nil
}

func isStylesheet(name string) bool {
	return strings.EqualFold(path.Ext(name), ".css")
}

// readStylesheet reads stylesheet from disk together with its source map
// ("name.css.map") when one is present.
func readStylesheet(file, name string, log *zap.Logger) (optimizer.Source, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return optimizer.Source{}, fmt.Errorf("unable to read stylesheet: %w", err)
	}
	src := optimizer.Source{Filename: name, Content: data}

	mapData, err := os.ReadFile(file + ".map")
	switch {
	case err == nil:
		m, err := sourcemap.Parse(mapData)
		if err != nil {
			log.Warn("Ignoring broken source map", zap.String("file", file+".map"), zap.Error(err))
			break
		}
		log.Debug("Using input source map", zap.String("file", file+".map"), zap.Strings("sources", m.Sources))
		src.Map = m
	case !errors.Is(err, fs.ErrNotExist):
		log.Warn("Unable to read source map", zap.String("file", file+".map"), zap.Error(err))
	}
	return src, nil
}

// collectSources turns command line arguments into stylesheets. Argument
// may be a stylesheet, a directory (all "*.css" files recursively) or a zip
// archive (all "*.css" entries). Order of arguments is kept, order inside
// directories and archives is natural order of names.
func collectSources(ctx context.Context, args []string, log *zap.Logger) ([]optimizer.Source, error) {
	var sources []optimizer.Source
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fi, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input source was not found (%s): %w", arg, err)
		}

		if fi.IsDir() {
			names, err := walkDir(ctx, arg, isStylesheet, log)
			if err != nil {
				return nil, fmt.Errorf("unable to process directory (%s): %w", arg, err)
			}
			if len(names) == 0 {
				log.Warn("No stylesheets found", zap.String("dir", arg))
			}
			for _, name := range names {
				src, err := readStylesheet(filepath.Join(arg, filepath.FromSlash(name)), path.Join(filepath.Base(arg), name), log)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				sources = append(sources, src)
			}
			continue
		}

		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("unexpected path mode for (%s)", arg)
		}

		zipped, err := isArchiveFile(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to check archive type: %w", err)
		}
		if !zipped {
			src, err := readStylesheet(arg, filepath.Base(arg), log)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, err)
			}
			sources = append(sources, src)
			continue
		}

		count := 0
		err = archive.Walk(arg, archive.Ext(".css"), func(name string, f *zip.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := archive.ReadFile(f, maxEntrySize)
			if err != nil {
				return err
			}
			count++
			sources = append(sources, optimizer.Source{Filename: path.Join(filepath.Base(name), f.Name), Content: data})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("unable to process archive (%s): %w", arg, err)
		}
		if count == 0 {
			log.Warn("No stylesheets found", zap.String("archive", arg))
		}
	}
	return sources, nil
}

// collectTemplates loads template facts. Arguments are handled the same way
// as stylesheets, files in directories and archives are selected with
// analysis.IsTemplate. Nil set is returned when there are no arguments.
func collectTemplates(ctx context.Context, args []string, log *zap.Logger) (*analysis.Set, error) {
	if len(args) == 0 {
		return nil, nil
	}

	var templates []analysis.Template
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fi, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("templates were not found (%s): %w", arg, err)
		}

		if fi.IsDir() {
			names, err := walkDir(ctx, arg, analysis.IsTemplate, log)
			if err != nil {
				return nil, fmt.Errorf("unable to process directory (%s): %w", arg, err)
			}
			for _, name := range names {
				list, err := analysis.Load(filepath.Join(arg, filepath.FromSlash(name)))
				if err != nil {
					return nil, err
				}
				templates = append(templates, list...)
			}
			continue
		}

		zipped, err := isArchiveFile(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to check archive type: %w", err)
		}
		if !zipped {
			list, err := analysis.Load(arg)
			if err != nil {
				return nil, err
			}
			templates = append(templates, list...)
			continue
		}

		err = archive.Walk(arg, analysis.IsTemplate, func(name string, f *zip.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := archive.ReadFile(f, maxEntrySize)
			if err != nil {
				return err
			}
			list, err := analysis.LoadBytes(data, path.Join(filepath.Base(name), f.Name))
			if err != nil {
				return err
			}
			templates = append(templates, list...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("unable to process archive (%s): %w", arg, err)
		}
	}

	elements := 0
	for _, t := range templates {
		elements += len(t.Elements)
	}
	log.Debug("Templates loaded", zap.Int("templates", len(templates)), zap.Int("elements", elements))
	return analysis.NewSet(templates...), nil
}
