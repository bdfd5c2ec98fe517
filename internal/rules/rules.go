package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/loaders"
)

var ErrUnhandledAssetType = errors.New("unhandled asset type")

// nativeExtensions are script modules the bundler compiles itself.
var nativeExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
}

// IsNative reports whether the bundler handles path without a rule.
func IsNative(path string) bool {
	return nativeExtensions[strings.ToLower(filepath.Ext(path))]
}

// Rule is a compiled config rule: a predicate over module paths and the
// step chain applied to matching modules.
type Rule struct {
	// Position in the declared rule list
	Index   int
	Source  config.Rule
	Chain   *loaders.Chain
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// Matches reports whether the rule selects path.
func (r *Rule) Matches(path string) bool {
	path = filepath.ToSlash(path)
	if r.include != nil && !r.include.MatchString(path) {
		return false
	}
	if r.exclude != nil && r.exclude.MatchString(path) {
		return false
	}
	return true
}

// DeclaredOrder returns step names as written in the config.
func (r *Rule) DeclaredOrder() []string {
	return r.Source.StepNames()
}

// ApplicationOrder returns step names in the order they run.
func (r *Rule) ApplicationOrder() []string {
	return r.Chain.Names()
}

func (r *Rule) String() string {
	var parts []string
	if r.Source.FilePattern != "" {
		parts = append(parts, "filePattern="+r.Source.FilePattern)
	}
	if r.Source.ExcludePattern != "" {
		parts = append(parts, "excludePattern="+r.Source.ExcludePattern)
	}
	return fmt.Sprintf("rules[%d](%s)", r.Index, strings.Join(parts, " "))
}

// Table is the ordered dispatch table. The first rule whose predicate holds wins.
type Table struct {
	rules []*Rule
}

// Compile builds a table from declared rules, binding every step through reg.
func Compile(rules []config.Rule, reg *loaders.Registry) (*Table, error) {
	t := &Table{}

	for i, src := range rules {
		r := &Rule{Index: i, Source: src}

		if src.FilePattern == "" && src.ExcludePattern == "" {
			return nil, fmt.Errorf("rules[%d]: %w: filePattern or excludePattern is required", i, config.ErrInvalidPattern)
		}

		var err error
		if src.FilePattern != "" {
			if r.include, err = config.CompilePattern(src.FilePattern); err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
		}
		if src.ExcludePattern != "" {
			if r.exclude, err = config.CompilePattern(src.ExcludePattern); err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
		}

		if r.Chain, err = reg.Chain(src.Pipeline); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}

		t.rules = append(t.rules, r)
	}

	return t, nil
}

// Rules returns the compiled rules in declared order.
func (t *Table) Rules() []*Rule {
	return t.rules
}

// Match returns the first rule selecting path.
func (t *Table) Match(path string) (*Rule, error) {
	for _, r := range t.rules {
		if r.Matches(path) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (no rule matches, add one to the config)", ErrUnhandledAssetType, path)
}

// Route decides who handles a module the bundler is loading. Native script
// modules are only claimed by a rule whose filePattern selects them; a
// catch-all rule with just an excludePattern never takes them. A nil rule
// with a nil error means the bundler loads the module itself.
func (t *Table) Route(path string) (*Rule, error) {
	if !IsNative(path) {
		return t.Match(path)
	}
	for _, r := range t.rules {
		if r.include != nil && r.Matches(path) {
			return r, nil
		}
	}
	return nil, nil
}

// Transform runs the chain of the rule selecting path over content.
func (t *Table) Transform(ctx context.Context, env *loaders.Env, path string, content []byte) (*loaders.Module, *Rule, error) {
	r, err := t.Match(path)
	if err != nil {
		return nil, nil, err
	}

	m := &loaders.Module{Path: path, Content: content}
	if err := r.Chain.Run(ctx, env, m); err != nil {
		return nil, r, err
	}
	return m, r, nil
}

// TransformFile reads path and transforms it.
func (t *Table) TransformFile(ctx context.Context, env *loaders.Env, path string) (*loaders.Module, *Rule, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return t.Transform(ctx, env, path, content)
}
