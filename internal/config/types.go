package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Mode selects optimization and debug behaviour of a build.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Modes lists the recognised modes.
var Modes = []Mode{ModeDevelopment, ModeProduction}

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !slices.Contains(Modes, m) {
		return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidMode, s, ModeDevelopment, ModeProduction)
	}
	return m, nil
}

// Config is the build configuration record. It is constructed once per
// build or serve run and never mutated afterwards.
type Config struct {
	// Root of the module graph, relative to the config file
	EntryPath string `yaml:"entryPath" json:"entryPath"`
	// Name of the primary script bundle
	OutputFileName string `yaml:"outputFileName" json:"outputFileName"`
	// Output directory, relative to the config file
	OutputDirectory string `yaml:"outputDirectory" json:"outputDirectory"`
	// Base URL prefixed to emitted asset references
	PublicPath string `yaml:"publicPath" json:"publicPath"`
	// Ordered rule list, first match wins
	Rules []Rule `yaml:"rules" json:"rules"`
	// Markup template used to generate the served page
	HTMLTemplatePath string    `yaml:"htmlTemplatePath,omitempty" json:"htmlTemplatePath,omitempty"`
	Mode             Mode      `yaml:"mode" json:"mode"`
	DevServer        DevServer `yaml:"devServerConfig" json:"devServerConfig"`

	// BaseDir is the absolute directory of the loaded document. Relative
	// paths in the record resolve against it.
	BaseDir string `yaml:"-" json:"-"`
}

// Resolve resolves a config relative path against BaseDir.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, filepath.FromSlash(p))
}

// EntryFile returns the absolute entry path.
func (c *Config) EntryFile() string {
	return c.Resolve(c.EntryPath)
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	return c.Resolve(c.OutputDirectory)
}

// TemplateFile returns the absolute template path, or "" when no template is configured.
func (c *Config) TemplateFile() string {
	return c.Resolve(c.HTMLTemplatePath)
}

// Production reports whether the config selects production mode.
func (c *Config) Production() bool {
	return c.Mode == ModeProduction
}

// Rule associates a file pattern with a transformation pipeline.
type Rule struct {
	// Regular expression tested against the module path
	FilePattern string `yaml:"filePattern,omitempty" json:"filePattern,omitempty"`
	// Paths matching this expression are never selected by the rule
	ExcludePattern string `yaml:"excludePattern,omitempty" json:"excludePattern,omitempty"`
	// Steps apply right-to-left: the last declared step runs first
	Pipeline []Step `yaml:"transformationPipeline" json:"transformationPipeline"`
}

// StepNames returns the declared step names.
func (r Rule) StepNames() []string {
	names := make([]string, len(r.Pipeline))
	for i, s := range r.Pipeline {
		names[i] = s.Name
	}
	return names
}

// Step is a named transformation step with optional options. In documents a
// bare string is shorthand for a step without options.
type Step struct {
	Name    string         `yaml:"name" json:"name"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

type stepFields Step

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Step{}
		return value.Decode(&s.Name)
	}

	// node.Decode does not inherit KnownFields from the outer decoder
	if value.Kind == yaml.MappingNode {
		for i := 0; i < len(value.Content); i += 2 {
			switch key := value.Content[i].Value; key {
			case "name", "options":
			default:
				return fmt.Errorf("line %d: field %s not found in step", value.Content[i].Line, key)
			}
		}
	}

	var f stepFields
	if err := value.Decode(&f); err != nil {
		return err
	}
	*s = Step(f)
	return nil
}

func (s Step) MarshalYAML() (any, error) {
	if len(s.Options) == 0 {
		return s.Name, nil
	}
	return stepFields(s), nil
}

func (s *Step) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*s = Step{}
		return json.Unmarshal(data, &s.Name)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f stepFields
	if err := dec.Decode(&f); err != nil {
		return err
	}
	*s = Step(f)
	return nil
}

func (s Step) MarshalJSON() ([]byte, error) {
	if len(s.Options) == 0 {
		return json.Marshal(s.Name)
	}
	return json.Marshal(stepFields(s))
}

// DevServer configures the local development server.
type DevServer struct {
	// Directory served from disk behind the in-memory build output
	ServedDirectory    string `yaml:"servedDirectory" json:"servedDirectory"`
	CompressionEnabled bool   `yaml:"compressionEnabled" json:"compressionEnabled"`
	Port               int    `yaml:"port" json:"port"`
	AutoOpenBrowser    bool   `yaml:"autoOpenBrowser" json:"autoOpenBrowser"`
	Host               string `yaml:"host,omitempty" json:"host,omitempty"`
	// Rebuild the in-memory bundle when sources change, defaults to true
	Watch *bool `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// WatchEnabled reports whether source watching is on.
func (d DevServer) WatchEnabled() bool {
	return d.Watch == nil || *d.Watch
}

// Addr returns the listen address.
func (d DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}
