package assets

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/rules"
)

// writeProject lays out a small project and returns the default config
// rooted at it.
func writeProject(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	cfg := config.Default()
	cfg.BaseDir = dir
	return cfg
}

func projectFiles() map[string]string {
	return map[string]string{
		"src/index.js": `import "./style.css";
import logo from "./logo.png";
document.body.dataset.logo = logo;
console.log(process.env.NODE_ENV);
`,
		"src/style.css": "body { background: url(./big.png) no-repeat; }\n",
		"src/logo.png":  string(bytes.Repeat([]byte{1}, 512)),
		"src/big.png":   string(bytes.Repeat([]byte{2}, 10*1024)),
		"src/index.html": `<!DOCTYPE html>
<html>
<head><title>Demo</title></head>
<body><img src="./logo.png" alt="logo"></body>
</html>
`,
	}
}

func build(t *testing.T, cfg *config.Config) (*Result, error) {
	t.Helper()
	p, err := New(cfg, DefaultConfig())
	require.NoError(t, err)
	return p.Build(context.Background())
}

func TestBuild_development(t *testing.T) {
	cfg := writeProject(t, projectFiles())

	res, err := build(t, cfg)
	require.NoError(t, err)

	js, ok := res.File("build.js")
	require.True(t, ok, "files: %v", res.Paths())
	require.Contains(t, string(js), "data:image/png;base64,")
	require.Contains(t, string(js), `document.createElement("style")`)
	require.Contains(t, string(js), `"development"`)

	_, ok = res.File("build.js.map")
	require.True(t, ok, "development builds link a source map")

	var images []string
	for _, name := range res.Paths() {
		if strings.HasPrefix(name, "img/") {
			images = append(images, name)
		}
	}
	require.Len(t, images, 1, "only the large image is emitted")
	require.Regexp(t, regexp.MustCompile(`^img/[0-9a-f]{10}\.png$`), images[0])
	require.Contains(t, string(js), "./"+images[0])

	require.Equal(t, []string{"./build.js"}, res.Scripts)
	require.Empty(t, res.Styles)

	page, ok := res.File("index.html")
	require.True(t, ok)
	require.Contains(t, string(page), `<script src="./build.js"></script>`)
	require.Contains(t, string(page), `<title>Demo</title>`)
	require.Contains(t, string(page), `<img src="data:image/png;base64,`)
	require.Equal(t, config.ModeDevelopment, res.Mode)
}

func TestBuild_production(t *testing.T) {
	cfg := writeProject(t, projectFiles())
	cfg.Mode = config.ModeProduction

	res, err := build(t, cfg)
	require.NoError(t, err)

	_, ok := res.File("build.js.map")
	require.False(t, ok)

	js, ok := res.File("build.js")
	require.True(t, ok)
	require.NotContains(t, string(js), "process.env.NODE_ENV")
	require.Contains(t, string(js), `"production"`)
}

func TestBuild_publicPath(t *testing.T) {
	cfg := writeProject(t, projectFiles())
	cfg.PublicPath = "/static/"

	res, err := build(t, cfg)
	require.NoError(t, err)

	require.Equal(t, []string{"/static/build.js"}, res.Scripts)
	page, _ := res.File("index.html")
	require.Contains(t, string(page), `<script src="/static/build.js"></script>`)
}

func TestBuild_defaultPage(t *testing.T) {
	cfg := writeProject(t, projectFiles())
	cfg.HTMLTemplatePath = ""

	res, err := build(t, cfg)
	require.NoError(t, err)

	page, ok := res.File("index.html")
	require.True(t, ok)
	require.Contains(t, string(page), "<title>Packer App</title>")
	require.Contains(t, string(page), `<script src="./build.js"></script>`)
}

func TestBuild_unhandledAsset(t *testing.T) {
	files := projectFiles()
	files["src/index.js"] = `import anim from "./anim.gif";
console.log(anim);
`
	files["src/anim.gif"] = "GIF89a"
	cfg := writeProject(t, files)

	_, err := build(t, cfg)
	require.ErrorIs(t, err, ErrBuildFailed)
	require.ErrorIs(t, err, rules.ErrUnhandledAssetType)
	require.Contains(t, err.Error(), "anim.gif")
}

func TestBuild_cssImport(t *testing.T) {
	files := projectFiles()
	files["src/style.css"] = `@import "./other.css";
@import url("https://fonts.example.com/css?family=Inter");
@import url('./print.css') print;
body { margin: 0; }
`
	files["src/other.css"] = ".other { background: url(./big.png); }\n"
	files["src/print.css"] = ".print { color: black; }\n"
	cfg := writeProject(t, files)

	res, err := build(t, cfg)
	require.NoError(t, err)

	data, ok := res.File("build.js")
	require.True(t, ok)
	js := string(data)
	require.Contains(t, js, ".other { background: url(")
	require.Contains(t, js, "@media print {")
	require.Contains(t, js, ".print { color: black; }")
	require.Contains(t, js, "body { margin: 0; }")
	require.Equal(t, 1, strings.Count(js, "@import"), "only the remote import is kept")
	require.Less(t, strings.Index(js, "https://fonts.example.com/css?family=Inter"), strings.Index(js, "body { margin: 0; }"),
		"remote imports stay ahead of the rules")
	require.Equal(t, 1, strings.Count(js, `document.createElement("style")`), "imported sheets are inlined, not injected")

	var images []string
	for _, name := range res.Paths() {
		if strings.HasPrefix(name, "img/") {
			images = append(images, name)
		}
	}
	require.Len(t, images, 1, "url() in an imported sheet goes through the rule table")
}

func TestBuild_cssImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		css     string
		wantErr string
	}{
		{name: "missing file", css: `@import "./missing.css";`, wantErr: "missing.css"},
		{name: "rule without css-loader", css: `@import "./logo.png";`, wantErr: "needs a rule using css-loader"},
		{name: "unhandled type", css: `@import "./anim.gif";`, wantErr: "anim.gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := projectFiles()
			files["src/style.css"] = tt.css + "\nbody { margin: 0; }\n"
			files["src/anim.gif"] = "GIF89a"
			cfg := writeProject(t, files)

			_, err := build(t, cfg)
			require.ErrorIs(t, err, ErrBuildFailed)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuild_syntaxError(t *testing.T) {
	files := projectFiles()
	files["src/index.js"] = "const = ;\n"
	cfg := writeProject(t, files)

	_, err := build(t, cfg)
	require.ErrorIs(t, err, ErrBuildFailed)
	require.Contains(t, err.Error(), "index.js")
}

func TestBuild_missingInputs(t *testing.T) {
	cfg := writeProject(t, projectFiles())
	cfg.EntryPath = "./src/missing.js"

	_, err := build(t, cfg)
	require.ErrorIs(t, err, ErrMissingEntry)

	cfg = writeProject(t, projectFiles())
	cfg.HTMLTemplatePath = "./src/missing.html"

	_, err = build(t, cfg)
	require.ErrorIs(t, err, ErrMissingTemplate)
}

func TestBuild_canceled(t *testing.T) {
	cfg := writeProject(t, projectFiles())
	p, err := New(cfg, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_invalidRules(t *testing.T) {
	cfg := config.Default()
	cfg.Rules = append(cfg.Rules, config.Rule{FilePattern: `\.svg$`, Pipeline: []config.Step{{Name: "svg-loader"}}})

	_, err := New(cfg, DefaultConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "rules[5]")
}

func TestWriteResult(t *testing.T) {
	res := &Result{Files: map[string][]byte{
		"build.js":       []byte("console.log(1)"),
		"img/abc.png":    {1, 2, 3},
		"font/deep/a.tt": []byte("font"),
	}}
	dir := filepath.Join(t.TempDir(), "build")

	require.NoError(t, WriteResult(context.Background(), res, dir))

	for name, want := range res.Files {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// overwriting keeps the latest content
	res.Files["build.js"] = []byte("console.log(2)")
	require.NoError(t, WriteResult(context.Background(), res, dir))
	got, err := os.ReadFile(filepath.Join(dir, "build.js"))
	require.NoError(t, err)
	require.Equal(t, "console.log(2)", string(got))
}

func TestWriteResult_escape(t *testing.T) {
	res := &Result{Files: map[string][]byte{"../evil.js": []byte("x")}}
	require.Error(t, WriteResult(context.Background(), res, t.TempDir()))
}

func TestGenerateHTML(t *testing.T) {
	tests := []struct {
		name     string
		template string
		contains []string
		warnings int
	}{
		{
			name:     "default shell",
			contains: []string{"<!DOCTYPE html>", `<link rel="stylesheet" href="./main.css"/>`, `<script src="./main.js"></script></body>`},
		},
		{
			name:     "fragment",
			template: `<div id="app"></div>`,
			contains: []string{`<div id="app"></div><script src="./main.js"></script>`, `<head><link rel="stylesheet" href="./main.css"/></head>`},
		},
		{
			name:     "already referenced",
			template: `<html><head></head><body><script src="./main.js"></script></body></html>`,
			contains: []string{`<body><script src="./main.js"></script></body>`},
			warnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, warnings, err := GenerateHTML([]byte(tt.template), []string{"./main.js"}, []string{"./main.css"})
			require.NoError(t, err)
			for _, want := range tt.contains {
				require.Contains(t, string(page), want)
			}
			require.Len(t, warnings, tt.warnings)
		})
	}
}

func TestResult_helpers(t *testing.T) {
	res := &Result{Files: map[string][]byte{"b.js": {1, 2}, "a.css": {1}}}
	require.Equal(t, []string{"a.css", "b.js"}, res.Paths())
	require.Equal(t, 3, res.Size())
	_, ok := res.File("c.js")
	require.False(t, ok)
}
