package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Skipped names a command directory that failed to load.
type Skipped struct {
	Dir string
	Err error
}

// Registry is the set of commands found under one directory. Lookups are
// case-insensitive and safe for concurrent use; Load replaces the set.
type Registry struct {
	dir string

	mu      sync.RWMutex
	byName  map[string]*Command
	skipped []Skipped
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, byName: map[string]*Command{}}
}

// Load reads every subdirectory of the registry dir as a command. Broken
// manifests are logged and reported by Skipped; a missing dir loads nothing.
func (r *Registry) Load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load commands from %s: %w", r.dir, err)
	}

	loaded := map[string]*Command{}
	var skipped []Skipped

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		cmd, err := loadCommandDir(filepath.Join(r.dir, entry.Name()))
		if err == nil {
			if _, dup := loaded[cmd.Name]; dup {
				err = fmt.Errorf("duplicate command name %q", cmd.Name)
			}
		}
		if err != nil {
			slog.Warn("skipping command", "dir", entry.Name(), "error", err)
			skipped = append(skipped, Skipped{Dir: entry.Name(), Err: err})
			continue
		}
		loaded[cmd.Name] = cmd
	}

	r.mu.Lock()
	r.byName = loaded
	r.skipped = skipped
	r.mu.Unlock()

	return nil
}

func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// Has lets the registry serve as the classifier's command set.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the loaded commands ordered by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.byName))
	for _, cmd := range r.byName {
		cmds = append(cmds, cmd)
	}
	slices.SortFunc(cmds, func(a, b *Command) int { return strings.Compare(a.Name, b.Name) })
	return cmds
}

func (r *Registry) Names() []string {
	cmds := r.List()
	names := make([]string, len(cmds))
	for i, cmd := range cmds {
		names[i] = cmd.Name
	}
	return names
}

func (r *Registry) Skipped() []Skipped {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.skipped)
}
