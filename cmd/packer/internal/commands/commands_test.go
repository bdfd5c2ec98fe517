package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/loaders"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestInitCmd_Run(t *testing.T) {
	out := captureStdout(t)
	path := filepath.Join(t.TempDir(), "packer.yaml")

	cmd := &InitCmd{Path: path}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	assert.Contains(t, out.String(), "Wrote")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Rules, cfg.Rules)
	assert.Equal(t, "./src/index.js", cfg.EntryPath)
	assert.Equal(t, 3000, cfg.DevServer.Port)
}

func TestInitCmd_Existing(t *testing.T) {
	captureStdout(t)
	path := filepath.Join(t.TempDir(), "packer.yaml")
	writeFile(t, path, "keep me")

	cmd := &InitCmd{Path: path}
	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))

	cmd.Force = true
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	_, err = config.Load(path)
	require.NoError(t, err)
}

func TestInitCmd_JSON(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()

	for _, cmd := range []*InitCmd{
		{Path: filepath.Join(dir, "packer.json")},
		{Path: filepath.Join(dir, "packer.config"), Format: "json"},
	} {
		require.NoError(t, cmd.Run(context.Background(), &Globals{}))

		data, err := os.ReadFile(cmd.Path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc), cmd.Path)
		assert.Equal(t, "./src/index.js", doc["entryPath"])
		assert.Contains(t, doc, "devServerConfig")
	}
}

func TestPrintCmd_Run(t *testing.T) {
	out := captureStdout(t)
	path := filepath.Join(t.TempDir(), "packer.yaml")
	writeFile(t, path, `entryPath: ./src/main.js
rules:
  - filePattern: \.css$
    transformationPipeline: [style-loader, css-loader]
`)

	cmd := &PrintCmd{ConfigFlags: ConfigFlags{Config: path}, Format: "json"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "main.js", doc["outputFileName"])
	assert.Equal(t, "dist", doc["outputDirectory"])
	assert.Equal(t, "production", doc["mode"])

	out.Reset()
	cmd.Mode = "development"
	cmd.Format = "yaml"
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	assert.Contains(t, out.String(), "mode: development")
}

func TestPrintCmd_InvalidMode(t *testing.T) {
	captureStdout(t)
	path := filepath.Join(t.TempDir(), "packer.yaml")
	writeFile(t, path, "entryPath: ./src/main.js\n")

	cmd := &PrintCmd{ConfigFlags: ConfigFlags{Config: path}, ModeFlags: ModeFlags{Mode: "staging"}, Format: "yaml"}
	err := cmd.Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, config.ErrInvalidMode)
}

func TestValidateCmd_Run(t *testing.T) {
	out := captureStdout(t)
	path := filepath.Join(t.TempDir(), "packer.yaml")
	data, err := config.Marshal(config.Default(), config.FormatYAML)
	require.NoError(t, err)
	writeFile(t, path, string(data))

	cmd := &ValidateCmd{ConfigFlags: ConfigFlags{Config: path}, Strict: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	assert.Contains(t, out.String(), `rules[0](filePattern=\.css$): css-loader -> style-loader`)
	assert.Contains(t, out.String(), "is valid")
}

func TestValidateCmd_Errors(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	writeFile(t, unknown, `entryPath: ./src/index.js
rules:
  - filePattern: \.scss$
    transformationPipeline: [sass-loader]
`)
	err := (&ValidateCmd{ConfigFlags: ConfigFlags{Config: unknown}}).Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, loaders.ErrUnknownStep)

	overlap := filepath.Join(dir, "overlap.yaml")
	writeFile(t, overlap, `entryPath: ./src/index.js
rules:
  - filePattern: \.png$
    transformationPipeline: [file-loader]
  - filePattern: \.(png|jpg)$
    transformationPipeline: [url-loader]
`)
	require.NoError(t, (&ValidateCmd{ConfigFlags: ConfigFlags{Config: overlap}}).Run(context.Background(), &Globals{}))

	err = (&ValidateCmd{ConfigFlags: ConfigFlags{Config: overlap}, Strict: true}).Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestBuildCmd_Run(t *testing.T) {
	out := captureStdout(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.HTMLTemplatePath = ""
	data, err := config.Marshal(cfg, config.FormatYAML)
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "packer.yaml"), string(data))
	writeFile(t, filepath.Join(dir, "src", "index.js"), `import "./app.css";
console.log("hello");
`)
	writeFile(t, filepath.Join(dir, "src", "app.css"), "body { margin: 0; }\n")
	writeFile(t, filepath.Join(dir, "build", "stale.txt"), "old")

	cmd := &BuildCmd{
		ConfigFlags: ConfigFlags{Config: filepath.Join(dir, "packer.yaml")},
		ModeFlags:   ModeFlags{Mode: "production"},
		Clean:       true,
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	js, err := os.ReadFile(filepath.Join(dir, "build", "build.js"))
	require.NoError(t, err)
	assert.Contains(t, string(js), "hello")

	page, err := os.ReadFile(filepath.Join(dir, "build", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `<script src="./build.js"></script>`)

	_, err = os.Stat(filepath.Join(dir, "build", "build.js.map"))
	assert.True(t, os.IsNotExist(err), "production builds have no source map")
	_, err = os.Stat(filepath.Join(dir, "build", "stale.txt"))
	assert.True(t, os.IsNotExist(err), "clean removes stale output")

	assert.Contains(t, out.String(), "build.js")
}

func TestBuildCmd_MissingConfig(t *testing.T) {
	cmd := &BuildCmd{ConfigFlags: ConfigFlags{Config: filepath.Join(t.TempDir(), "packer.yaml")}}
	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
