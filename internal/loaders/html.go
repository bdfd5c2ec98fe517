package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// assetAttributes lists the attributes html-loader resolves per element.
var assetAttributes = map[atom.Atom][]string{
	atom.Img:    {"src"},
	atom.Source: {"src"},
	atom.Audio:  {"src"},
	atom.Video:  {"src", "poster"},
}

// HTMLLoader exports markup as a string. Local asset references such as
// <img src="./logo.png"> become imports, so the referenced files are
// handled by their own rules and the exported markup carries the
// resulting URLs. Option attributes: false exports the markup untouched.
func HTMLLoader(_ context.Context, _ *Env, m *Module, opts Options) error {
	if m.Kind == KindScript {
		return fmt.Errorf("expected markup, got %s module", m.Kind)
	}

	if b, ok := opts.Bool("attributes"); ok && !b {
		m.SetScript(Script{Export: jsString(string(m.Content))})
		return nil
	}

	var (
		script Script
		exprs  []string
	)
	text, err := RewriteAssetRefs(m.Content, func(ref string) string {
		exprs = append(exprs, script.AddImport(importPath(ref)))
		return marker(len(exprs) - 1)
	})
	if err != nil {
		return err
	}

	script.Export = concat(text, exprs)
	m.SetScript(script)
	return nil
}

// RewriteAssetRefs walks markup and replaces every local asset reference
// with the value returned by replace. Everything else is copied byte for
// byte.
func RewriteAssetRefs(markup []byte, replace func(ref string) string) (string, error) {
	var out strings.Builder
	z := html.NewTokenizer(bytes.NewReader(markup))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return out.String(), nil
			}
			return "", z.Err()
		}

		// Token lowercases the tag in place, keep the original bytes
		raw := append([]byte(nil), z.Raw()...)

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			if rewriteToken(&tok, replace) {
				out.WriteString(tok.String())
				continue
			}
		}
		out.Write(raw)
	}
}

func rewriteToken(tok *html.Token, replace func(ref string) string) bool {
	names, ok := assetAttributes[tok.DataAtom]
	if !ok {
		return false
	}

	changed := false
	for i, attr := range tok.Attr {
		if attr.Namespace != "" || !slices.Contains(names, attr.Key) || !isLocalRef(attr.Val) {
			continue
		}
		tok.Attr[i].Val = replace(stripQuery(strings.TrimSpace(attr.Val)))
		changed = true
	}
	return changed
}
