package local

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// workdir is a working directory shared between a collaborator's methods.
type workdir struct {
	mu  sync.RWMutex
	dir string
}

func newWorkdir(dir string) workdir {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return workdir{dir: filepath.Clean(dir)}
}

func (w *workdir) get() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

func (w *workdir) set(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dir = filepath.Clean(dir)
}

// resolve makes path absolute against the working directory and expands a
// leading "~".
func (w *workdir) resolve(path string) string {
	path = expandHome(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.get(), path)
}

// rel returns path relative to the working directory when it lies below it.
func (w *workdir) rel(path string) string {
	r, err := filepath.Rel(w.get(), path)
	if err != nil || strings.HasPrefix(r, "..") {
		return path
	}
	return r
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
