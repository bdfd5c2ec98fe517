package config

const (
	DefaultFileName       = "packer.yaml"
	DefaultOutputFileName = "main.js"
	DefaultOutputDir      = "dist"
	DefaultPort           = 8080
	DefaultHost           = "localhost"
)

// Default returns the configuration of a small web project: a script entry,
// stylesheet and less rules, inlined or copied images, html image
// resolution, a catch-all file rule for fonts and other binaries, one
// generated page and a dev server on port 3000.
func Default() *Config {
	cfg := &Config{
		EntryPath:       "./src/index.js",
		OutputFileName:  "build.js",
		OutputDirectory: "build",
		PublicPath:      "./",
		Rules: []Rule{
			{
				FilePattern: `\.css$`,
				Pipeline:    []Step{{Name: "style-loader"}, {Name: "css-loader"}},
			},
			{
				FilePattern: `\.less$`,
				Pipeline:    []Step{{Name: "style-loader"}, {Name: "css-loader"}, {Name: "less-loader"}},
			},
			{
				FilePattern: `\.(png|jpg)$`,
				Pipeline: []Step{{
					Name: "url-loader",
					Options: map[string]any{
						"limit":      8 * 1024,
						"name":       "[hash:10].[ext]",
						"outputPath": "img",
					},
				}},
			},
			{
				FilePattern: `\.html$`,
				Pipeline:    []Step{{Name: "html-loader"}},
			},
			{
				ExcludePattern: `\.(html|js|css|less|jpg|png|gif)$`,
				Pipeline: []Step{{
					Name: "file-loader",
					Options: map[string]any{
						"name":       "[hash:10].[ext]",
						"outputPath": "font",
					},
				}},
			},
		},
		HTMLTemplatePath: "./src/index.html",
		Mode:             ModeDevelopment,
		DevServer: DevServer{
			ServedDirectory:    "build",
			CompressionEnabled: true,
			Port:               3000,
			AutoOpenBrowser:    true,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills scalar fields a document left empty.
func (c *Config) applyDefaults() {
	if c.OutputFileName == "" {
		c.OutputFileName = DefaultOutputFileName
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = DefaultOutputDir
	}
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.DevServer.ServedDirectory == "" {
		c.DevServer.ServedDirectory = c.OutputDirectory
	}
	if c.DevServer.Host == "" {
		c.DevServer.Host = DefaultHost
	}
}
