package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var ErrToolNotFound = errors.New("external compiler not found")

// CSSImportPrefix marks an import created for a local @import. The
// bundler resolves it to the stylesheet's css-loader output with no
// style-loader step, so the imported rules are inlined into the importing
// sheet instead of getting a <style> element of their own.
const CSSImportPrefix = "packer-css-import:"

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^'"\s)][^\s)]*))\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+(?:url\(\s*(?:"([^"]*)"|'([^']*)'|([^'"\s)]+))\s*\)|"([^"]*)"|'([^']*)')([^;]*);[ \t]*\n?`)
)

// CSSLoader turns stylesheet text into a module exporting the stylesheet as
// a string. Local @import statements and url() references become imports
// so the rule table decides how each referenced file is handled. Remote
// @import statements are moved to the top of the sheet. Options import:
// false and url: false keep them untouched.
func CSSLoader(_ context.Context, _ *Env, m *Module, opts Options) error {
	if m.Kind == KindScript {
		return fmt.Errorf("expected stylesheet, got %s module", m.Kind)
	}

	resolveImports, resolveURLs := true, true
	if b, ok := opts.Bool("import"); ok {
		resolveImports = b
	}
	if b, ok := opts.Bool("url"); ok {
		resolveURLs = b
	}

	var (
		script Script
		exprs  []string
	)
	text := string(m.Content)
	if resolveImports {
		var remote []string
		text = cssImportPattern.ReplaceAllStringFunc(text, func(match string) string {
			sub := cssImportPattern.FindStringSubmatch(match)
			ref := strings.TrimSpace(sub[1] + sub[2] + sub[3] + sub[4] + sub[5])
			if !isLocalRef(ref) {
				remote = append(remote, strings.TrimSpace(match))
				return ""
			}
			exprs = append(exprs, script.AddImport(CSSImportPrefix+importPath(stripQuery(ref))))
			if media := strings.TrimSpace(sub[6]); media != "" {
				return "@media " + media + " {\n" + marker(len(exprs)-1) + "}\n"
			}
			return marker(len(exprs) - 1)
		})
		if len(remote) > 0 {
			text = strings.Join(remote, "\n") + "\n" + text
		}
	}
	if resolveURLs {
		text = cssURLPattern.ReplaceAllStringFunc(text, func(match string) string {
			sub := cssURLPattern.FindStringSubmatch(match)
			ref := sub[1] + sub[2] + sub[3]
			if !isLocalRef(ref) {
				return match
			}
			exprs = append(exprs, script.AddImport(importPath(stripQuery(ref))))
			return "url(" + marker(len(exprs)-1) + ")"
		})
	}

	script.Export = concat(text, exprs)
	m.SetScript(script)
	return nil
}

// StyleLoader wraps a module exporting CSS so that importing it adds a
// <style> element with that CSS to document.head.
func StyleLoader(_ context.Context, _ *Env, m *Module, _ Options) error {
	if m.Kind != KindScript {
		return fmt.Errorf("expected a module exporting css, got %s content (declare css-loader after style-loader)", m.Kind)
	}

	s := m.Script
	s.Body = append(s.Body,
		"const __packer_css = "+s.Export+";",
		`const __packer_style = document.createElement("style");`,
		`__packer_style.setAttribute("data-packer", `+jsString(filepath.Base(m.Path))+`);`,
		"__packer_style.textContent = __packer_css;",
		"document.head.appendChild(__packer_style);",
	)
	s.Export = "__packer_css"
	m.SetScript(s)
	return nil
}

// LessLoader compiles LESS to CSS with the lessc executable. Imports
// resolve relative to the source file.
func LessLoader(ctx context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind == KindScript {
		return fmt.Errorf("expected less source, got %s module", m.Kind)
	}

	bin, err := opts.String("lessc", env.Lessc)
	if err != nil {
		return err
	}
	if bin == "" {
		bin = "lessc"
	}
	lessc, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolNotFound, bin, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, lessc, "--no-color", "--include-path="+filepath.Dir(m.Path), "-")
	cmd.Stdin = bytes.NewReader(m.Content)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("lessc: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	m.Content = stdout.Bytes()
	m.Kind = KindCSS
	return nil
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
