package loaders

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
)

// URLLoader inlines files smaller than the limit option as base64 data
// URLs and hands larger ones to FileLoader with the same options. Without
// a limit every file is inlined; limit: false never inlines.
func URLLoader(ctx context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind == KindScript {
		return fmt.Errorf("expected file content, got %s module", m.Kind)
	}

	inline, err := shouldInline(opts, len(m.Content))
	if err != nil {
		return err
	}
	if !inline {
		return FileLoader(ctx, env, m, opts)
	}

	mimetype, err := opts.String("mimetype", ContentType(m.Path))
	if err != nil {
		return err
	}

	uri := "data:" + mimetype + ";base64," + base64.StdEncoding.EncodeToString(m.Content)
	m.SetScript(Script{Export: jsString(uri)})
	return nil
}

func shouldInline(opts Options, size int) (bool, error) {
	if b, ok := opts.Bool("limit"); ok {
		return b, nil
	}
	limit, ok, err := opts.Int("limit")
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return size < limit, nil
}

// FileLoader emits the file into the build output at
// outputPath/<name template> and exports its public URL.
func FileLoader(_ context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind == KindScript {
		return fmt.Errorf("expected file content, got %s module", m.Kind)
	}
	if env == nil || env.Emitter == nil {
		return errors.New("no emitter configured")
	}

	tmpl, err := opts.String("name", DefaultNameTemplate)
	if err != nil {
		return err
	}
	name, err := Interpolate(tmpl, m.Path, env.Context, m.Content)
	if err != nil {
		return err
	}
	outputPath, err := opts.String("outputPath", "")
	if err != nil {
		return err
	}

	rel := path.Join(outputPath, name)
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return fmt.Errorf("output %q escapes the output directory", rel)
	}

	if emit, ok := opts.Bool("emitFile"); !ok || emit {
		env.Emitter.Emit(rel, m.Content)
	}

	publicPath, err := opts.String("publicPath", env.PublicPath)
	if err != nil {
		return err
	}

	m.SetScript(Script{Export: jsString(PublicURL(publicPath, rel))})
	return nil
}

// PublicURL joins a public path and an output relative file path.
func PublicURL(publicPath, rel string) string {
	if publicPath == "" || strings.HasSuffix(publicPath, "/") {
		return publicPath + rel
	}
	return publicPath + "/" + rel
}
