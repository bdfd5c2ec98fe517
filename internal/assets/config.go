package assets

import "github.com/wolfeidau/packer/internal/loaders"

// Config holds pipeline settings that are not part of the build document.
type Config struct {
	// lessc executable handed to less-loader, looked up on PATH when empty
	Lessc string
	// Transformation steps available to rules
	Registry *loaders.Registry
	// Name of the generated page inside the output directory
	HTMLFileName string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Registry:     loaders.NewRegistry(),
		HTMLFileName: "index.html",
	}
}
