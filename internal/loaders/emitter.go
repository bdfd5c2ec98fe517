package loaders

import (
	"maps"
	"path"
	"slices"
	"sync"
)

// Emitter collects the files steps add to the build output. The bundler
// runs load callbacks in parallel, so it is safe for concurrent use.
type Emitter struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewEmitter() *Emitter {
	return &Emitter{files: make(map[string][]byte)}
}

// Emit stores data at the output relative slash path name. Emitting the
// same name twice keeps the last content.
func (e *Emitter) Emit(name string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[path.Clean(name)] = data
}

// Files returns a copy of everything emitted so far.
func (e *Emitter) Files() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.files)
}

// Names returns the emitted names, sorted.
func (e *Emitter) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.files))
}
