package devserver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watcher rebuilds the server's result when project sources change.
type watcher struct {
	server  *Server
	fs      *fsnotify.Watcher
	log     zerolog.Logger
	ignored []string
	trigger chan struct{}
}

func newWatcher(s *Server, log zerolog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &watcher{
		server:  s,
		fs:      fsw,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
	// rebuilding on our own output would loop
	for _, dir := range []string{s.cfg.OutputDir(), s.writeTo} {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignored = append(w.ignored, abs)
		}
	}

	for _, root := range w.roots() {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// roots returns the directories holding the entry and the template.
func (w *watcher) roots() []string {
	cfg := w.server.cfg
	roots := []string{filepath.Dir(cfg.EntryFile())}
	if cfg.HTMLTemplatePath != "" {
		dir := filepath.Dir(cfg.TemplateFile())
		if !strings.HasPrefix(dir+string(filepath.Separator), roots[0]+string(filepath.Separator)) {
			roots = append(roots, dir)
		}
	}
	return roots
}

func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.skip(p) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *watcher) skip(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || base == "node_modules" {
		return true
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, dir := range w.ignored {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) run(ctx context.Context) {
	defer w.fs.Close()

	var debounce *time.Timer
	w.log.Info().Strs("dirs", w.fs.WatchList()).Msg("Watching for changes")

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || w.skip(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn().Err(err).Msg("Failed to watch new directory")
					}
				}
			}

			w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Source changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.server.debounce, func() {
				select {
				case w.trigger <- struct{}{}:
				default:
				}
			})

		case <-w.trigger:
			// errors are logged by Rebuild, the previous result stays served
			_ = w.server.Rebuild(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("Watcher error")
		}
	}
}
