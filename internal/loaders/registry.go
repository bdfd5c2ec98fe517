package loaders

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/wolfeidau/packer/internal/config"
)

var ErrUnknownStep = errors.New("unknown transformation step")

// Env carries the build wide settings steps depend on.
type Env struct {
	// Prefix of emitted asset URLs
	PublicPath string
	// Receives files emitted by steps
	Emitter *Emitter
	// Directory [path] in name templates is relative to
	Context string
	// lessc executable, looked up on PATH when empty
	Lessc string
}

// Func is a transformation step. It reads and replaces the module content.
type Func func(ctx context.Context, env *Env, m *Module, opts Options) error

// StepError reports which step failed on which module.
type StepError struct {
	Step string
	Path string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Registry maps step names to their implementation.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Func
}

// NewRegistry returns a registry holding the built-in steps.
func NewRegistry() *Registry {
	return &Registry{
		steps: map[string]Func{
			"css-loader":   CSSLoader,
			"style-loader": StyleLoader,
			"less-loader":  LessLoader,
			"url-loader":   URLLoader,
			"file-loader":  FileLoader,
			"html-loader":  HTMLLoader,
		},
	}
}

// Register adds or replaces a step.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[name] = fn
}

// Lookup returns the step called name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.steps[name]
	return fn, ok
}

// Names returns the registered step names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.steps))
}

// Chain binds a declared pipeline to step implementations.
func (r *Registry) Chain(steps []config.Step) (*Chain, error) {
	if len(steps) == 0 {
		return nil, config.ErrEmptyPipeline
	}

	c := &Chain{}
	for _, s := range steps {
		fn, ok := r.Lookup(s.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownStep, s.Name, r.Names())
		}
		c.steps = append(c.steps, boundStep{name: s.Name, fn: fn, opts: Options(s.Options)})
	}
	return c, nil
}

type boundStep struct {
	name string
	fn   Func
	opts Options
}

// Chain is a compiled pipeline. Steps run right-to-left: the last declared
// step sees the source file first.
type Chain struct {
	steps []boundStep
}

// Names returns step names in application order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.steps))
	for i := len(c.steps) - 1; i >= 0; i-- {
		names = append(names, c.steps[i].name)
	}
	return names
}

// Without returns a copy of the chain with the named steps removed.
func (c *Chain) Without(names ...string) *Chain {
	out := &Chain{}
	for _, s := range c.steps {
		if !slices.Contains(names, s.name) {
			out.steps = append(out.steps, s)
		}
	}
	return out
}

// Run applies every step to m.
func (c *Chain) Run(ctx context.Context, env *Env, m *Module) error {
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := c.steps[i]
		if err := s.fn(ctx, env, m, s.opts); err != nil {
			return &StepError{Step: s.name, Path: m.Path, Err: err}
		}
	}
	return nil
}
