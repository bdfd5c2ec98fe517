package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packer/internal/loaders"
	"github.com/wolfeidau/packer/internal/rules"
)

const (
	pluginName = "packer-rules"
	// stylesheets pulled in by an @import, loaded without style-loader
	cssImportNamespace = "packer-css-import"
)

// Build runs esbuild with the configured settings and returns the output in memory
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	cfg := p.cfg

	entry, err := filepath.Abs(cfg.EntryFile())
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(entry); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingEntry, entry, err)
	}

	var template []byte
	if cfg.HTMLTemplatePath != "" {
		if template, err = os.ReadFile(cfg.TemplateFile()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingTemplate, cfg.TemplateFile(), err)
		}
	}

	workDir := cfg.BaseDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	outdir, err := filepath.Abs(cfg.OutputDir())
	if err != nil {
		return nil, err
	}

	env := &loaders.Env{
		PublicPath: cfg.PublicPath,
		Emitter:    loaders.NewEmitter(),
		Context:    filepath.Dir(entry),
		Lessc:      p.config.Lessc,
	}
	d := &dispatch{ctx: ctx, table: p.table, env: env}

	log.Info().Str("entry", entry).Str("mode", string(cfg.Mode)).Msg("Building assets")

	prod := cfg.Production()
	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Outfile:           filepath.Join(outdir, filepath.FromSlash(cfg.OutputFileName)),
		AbsWorkingDir:     workDir,
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  prod,
		MinifyIdentifiers: prod,
		MinifySyntax:      prod,
		Sourcemap:         cond(prod, api.SourceMapNone, api.SourceMapLinked),
		Define: map[string]string{
			"process.env.NODE_ENV": `"` + string(cfg.Mode) + `"`,
		},
		Metafile: true,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{d.plugin()},
	})

	if len(result.Errors) > 0 {
		errs := d.failures()
		for _, msg := range result.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("Build error")
			if msg.PluginName != pluginName {
				errs = append(errs, errors.New(formatMessage(msg)))
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, errors.Join(errs...))
	}

	res := &Result{Mode: cfg.Mode}
	for _, msg := range result.Warnings {
		log.Warn().Str("warning", formatMessage(msg)).Msg("Build warning")
		res.Warnings = append(res.Warnings, formatMessage(msg))
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	scripts, styles, err := entryOutputs(&metadata, workDir, outdir)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		res.Scripts = append(res.Scripts, loaders.PublicURL(cfg.PublicPath, s))
	}
	for _, s := range styles {
		res.Styles = append(res.Styles, loaders.PublicURL(cfg.PublicPath, s))
	}

	page, warnings, err := p.renderPage(ctx, env, template, res.Scripts, res.Styles)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	// steps emit while esbuild runs and while the template is resolved
	res.Files = env.Emitter.Files()
	for _, file := range result.OutputFiles {
		rel, err := filepath.Rel(outdir, file.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("output %s is outside %s", file.Path, outdir)
		}
		res.Files[filepath.ToSlash(rel)] = file.Contents
	}
	res.HTML = p.config.HTMLFileName
	res.Files[res.HTML] = page

	res.BuiltAt = time.Now()
	res.Duration = res.BuiltAt.Sub(started)

	for _, name := range res.Paths() {
		log.Debug().Str("file", name).Int("bytes", len(res.Files[name])).Msg("Built file")
	}
	log.Info().
		Int("files", len(res.Files)).
		Int("bytes", res.Size()).
		Dur("duration", res.Duration).
		Msg("Build complete")

	return res, nil
}

// renderPage generates the page from the template. When the template itself
// is selected by a rule using html-loader, its local images are run through
// the rule table the same way imported markup is.
func (p *Pipeline) renderPage(ctx context.Context, env *loaders.Env, template []byte, scripts, styles []string) ([]byte, []string, error) {
	if template == nil {
		return GenerateHTML(nil, scripts, styles)
	}

	templateFile, err := filepath.Abs(p.cfg.TemplateFile())
	if err != nil {
		return nil, nil, err
	}

	r, err := p.table.Match(templateFile)
	if err != nil || !slices.Contains(r.DeclaredOrder(), "html-loader") {
		return GenerateHTML(template, scripts, styles)
	}

	var (
		warnings []string
		errs     []error
	)
	rewritten, err := loaders.RewriteAssetRefs(template, func(ref string) string {
		target := filepath.Join(filepath.Dir(templateFile), filepath.FromSlash(ref))
		m, _, err := p.table.TransformFile(ctx, env, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", p.cfg.HTMLTemplatePath, err))
			return ref
		}
		if url, ok := m.Script.Literal(); ok {
			return url
		}
		warnings = append(warnings, fmt.Sprintf("template %s: %s is not a plain url, left as is", p.cfg.HTMLTemplatePath, ref))
		return ref
	})
	if err != nil {
		return nil, nil, err
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %w", ErrBuildFailed, errors.Join(errs...))
	}

	page, pageWarnings, err := GenerateHTML([]byte(rewritten), scripts, styles)
	return page, append(warnings, pageWarnings...), err
}

// entryOutputs returns the output relative paths of the entry bundle, the
// chunks it imports and its stylesheet bundle.
func entryOutputs(metadata *BuildMetadata, workDir, outdir string) (scripts, styles []string, err error) {
	rel := func(key string) (string, error) {
		r, err := filepath.Rel(outdir, filepath.Join(workDir, filepath.FromSlash(key)))
		if err != nil {
			return "", err
		}
		return filepath.ToSlash(r), nil
	}

	// map iteration order is random, keep the result stable
	keys := make([]string, 0, len(metadata.Outputs))
	for key, info := range metadata.Outputs {
		if info.EntryPoint != "" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	if len(keys) == 0 {
		return nil, nil, errors.New("entrypoint not found in metadata")
	}

	visited := make(map[string]bool)
	var ordered []string
	for _, key := range keys {
		visited[key] = true
		ordered = append(ordered, key)
		addDependencies(metadata, metadata.Outputs[key], &ordered, visited)
	}

	for _, key := range ordered {
		r, err := rel(key)
		if err != nil {
			return nil, nil, err
		}
		scripts = append(scripts, r)

		if css := metadata.Outputs[key].CSSBundle; css != "" {
			r, err := rel(css)
			if err != nil {
				return nil, nil, err
			}
			styles = append(styles, r)
		}
	}
	return scripts, styles, nil
}

func addDependencies(metadata *BuildMetadata, output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if visited[imp.Path] {
			continue
		}
		chunkInfo, exists := metadata.Outputs[imp.Path]
		if !exists {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)
		addDependencies(metadata, chunkInfo, scripts, visited)
	}
}

// dispatch routes every file esbuild loads through the rule table.
type dispatch struct {
	ctx   context.Context
	table *rules.Table
	env   *loaders.Env

	mu   sync.Mutex
	errs []error
}

func (d *dispatch) plugin() api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(loaders.CSSImportPrefix)}, d.resolveCSSImport)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: cssImportNamespace}, d.loadCSSImport)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "file"}, d.load)
		},
	}
}

func (d *dispatch) load(args api.OnLoadArgs) (api.OnLoadResult, error) {
	rule, err := d.table.Route(args.Path)
	if err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}
	if rule == nil {
		// native module, esbuild reads it from disk
		return api.OnLoadResult{}, nil
	}

	content, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}

	m := &loaders.Module{Path: args.Path, Content: content}
	if err := rule.Chain.Run(d.ctx, d.env, m); err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}

	contents, loader, err := moduleSource(m)
	if err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}

	log.Debug().
		Str("path", args.Path).
		Str("rule", rule.String()).
		Strs("steps", rule.ApplicationOrder()).
		Msg("Transformed module")

	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     loader,
		ResolveDir: filepath.Dir(args.Path),
	}, nil
}

func (d *dispatch) resolveCSSImport(args api.OnResolveArgs) (api.OnResolveResult, error) {
	path := filepath.FromSlash(strings.TrimPrefix(args.Path, loaders.CSSImportPrefix))
	if !filepath.IsAbs(path) {
		path = filepath.Join(args.ResolveDir, path)
	}
	return api.OnResolveResult{Path: filepath.Clean(path), Namespace: cssImportNamespace}, nil
}

// loadCSSImport runs an @import target through its rule minus style-loader,
// so the module exports the stylesheet text for the importing sheet to
// inline.
func (d *dispatch) loadCSSImport(args api.OnLoadArgs) (api.OnLoadResult, error) {
	rule, err := d.table.Match(args.Path)
	if err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}
	if !slices.Contains(rule.DeclaredOrder(), "css-loader") {
		return api.OnLoadResult{}, d.fail(fmt.Errorf("@import of %s needs a rule using css-loader, %s has %v",
			args.Path, rule, rule.DeclaredOrder()))
	}

	content, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}

	m := &loaders.Module{Path: args.Path, Content: content}
	if err := rule.Chain.Without("style-loader").Run(d.ctx, d.env, m); err != nil {
		return api.OnLoadResult{}, d.fail(err)
	}
	if m.Kind != loaders.KindScript {
		return api.OnLoadResult{}, d.fail(fmt.Errorf("@import of %s produced %s content", args.Path, m.Kind))
	}

	log.Debug().
		Str("path", args.Path).
		Str("rule", rule.String()).
		Msg("Inlined imported stylesheet")

	contents := m.Script.Render()
	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     api.LoaderJS,
		ResolveDir: filepath.Dir(args.Path),
	}, nil
}

func (d *dispatch) fail(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
	return err
}

func (d *dispatch) failures() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.errs)
}

func moduleSource(m *loaders.Module) (string, api.Loader, error) {
	switch m.Kind {
	case loaders.KindScript:
		return m.Script.Render(), api.LoaderJS, nil
	case loaders.KindCSS:
		return string(m.Content), api.LoaderCSS, nil
	default:
		return "", api.LoaderNone, fmt.Errorf("%s: pipeline produced %s content, end it with a step that yields a module", m.Path, m.Kind)
	}
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
