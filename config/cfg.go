package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"cssopt/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	PassConfig struct {
		Enabled   bool     `yaml:"enabled"`
		Safelist  []string `yaml:"safelist,omitempty" validate:"dive,required"`
		Precision int      `yaml:"precision,omitempty" validate:"gte=0"`
		Exclude   []string `yaml:"exclude,omitempty" validate:"dive,required"`
	}

	PassesConfig struct {
		RemoveUnused       PassConfig `yaml:"remove_unused"`
		DedupeDeclarations PassConfig `yaml:"dedupe_declarations"`
		MergeAdjacent      PassConfig `yaml:"merge_adjacent"`
		CompactValues      PassConfig `yaml:"compact_values"`
		ShareDeclarations  PassConfig `yaml:"share_declarations"`
		// rename_idents is controlled by optimizer.rename, only exclude list
		// is used
		RenameIdents PassConfig `yaml:"rename_idents"`
	}

	OptimizerConfig struct {
		Enabled     bool              `yaml:"enabled"`
		Concurrency int               `yaml:"concurrency" validate:"gte=0"`
		Rename      common.RenameMode `yaml:"rename"`
		Order       []common.Kind     `yaml:"order" validate:"unique"`
		Passes      PassesConfig      `yaml:"passes"`
	}

	OutputConfig struct {
		NameTemplate string `yaml:"name_template" validate:"required"`
		Minify       bool   `yaml:"minify"`
		SourceMap    bool   `yaml:"source_map"`
		Mapping      bool   `yaml:"mapping"`
		Database     string `yaml:"database,omitempty" validate:"omitempty,filepath"`
		Charset      string `yaml:"charset,omitempty"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Optimizer OptimizerConfig `yaml:"optimizer"`
		Output    OutputConfig    `yaml:"output"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

// Pass returns configuration fragment of the given pass kind.
func (c *PassesConfig) Pass(kind common.Kind) PassConfig {
	switch kind {
	case common.KindRemoveUnused:
		return c.RemoveUnused
	case common.KindDedupeDeclarations:
		return c.DedupeDeclarations
	case common.KindMergeAdjacent:
		return c.MergeAdjacent
	case common.KindCompactValues:
		return c.CompactValues
	case common.KindShareDeclarations:
		return c.ShareDeclarations
	case common.KindRenameIdents:
		return c.RenameIdents
	}
	return PassConfig{}
}

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("configuration sanitizing failed: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
