package assets

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/loaders"
	"github.com/wolfeidau/packer/internal/rules"
)

var (
	ErrBuildFailed     = errors.New("build failed")
	ErrMissingEntry    = errors.New("entry point not found")
	ErrMissingTemplate = errors.New("html template not found")
)

// BuildMetadata is the part of the esbuild metafile the pipeline reads.
type BuildMetadata struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes int `json:"bytes"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Result is one finished build, held entirely in memory.
type Result struct {
	// Output relative slash path to content
	Files map[string][]byte
	// Public URLs of the script bundles, in load order
	Scripts []string
	// Public URLs of the extracted stylesheets
	Styles []string
	// Name of the generated page in Files
	HTML     string
	Warnings []string
	Mode     config.Mode
	BuiltAt  time.Time
	Duration time.Duration
}

// Paths returns the output paths, sorted.
func (r *Result) Paths() []string {
	return slices.Sorted(maps.Keys(r.Files))
}

// File returns the content at the output relative path name.
func (r *Result) File(name string) ([]byte, bool) {
	data, ok := r.Files[name]
	return data, ok
}

// Size returns the total number of bytes in the result.
func (r *Result) Size() int {
	total := 0
	for _, data := range r.Files {
		total += len(data)
	}
	return total
}

// Pipeline builds a configured project with esbuild. Builds are serialised;
// the dev server may trigger rebuilds while a previous result is served.
type Pipeline struct {
	cfg    *config.Config
	config Config
	table  *rules.Table
	mu     sync.Mutex
}

// New creates a pipeline for cfg, compiling its rules against the step registry.
func New(cfg *config.Config, opts Config) (*Pipeline, error) {
	if opts.Registry == nil {
		opts.Registry = loaders.NewRegistry()
	}
	if opts.HTMLFileName == "" {
		opts.HTMLFileName = DefaultConfig().HTMLFileName
	}

	table, err := rules.Compile(cfg.Rules, opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return &Pipeline{
		cfg:    cfg,
		config: opts,
		table:  table,
	}, nil
}

// BuildConfig returns the build configuration the pipeline was created with.
func (p *Pipeline) BuildConfig() *config.Config {
	return p.cfg
}

// Table returns the compiled rule table.
func (p *Pipeline) Table() *rules.Table {
	return p.table
}
