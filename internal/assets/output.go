package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// WriteResult writes every file in res below dir. Each file is replaced
// atomically so a server reading dir never sees a partial write.
func WriteResult(ctx context.Context, res *Result, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for _, name := range res.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(name))
		if rel, err := filepath.Rel(root, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("refusing to write %s outside %s", name, root)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := renameio.WriteFile(target, res.Files[name], 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Debug().Str("path", target).Msg("Wrote file")
	}

	log.Info().Str("dir", root).Int("files", len(res.Files)).Msg("Wrote build output")
	return nil
}
