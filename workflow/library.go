package workflow

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Library holds loaded plans keyed by normalized name.
type Library struct {
	mu    sync.RWMutex
	plans map[string]*Workflow
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{plans: make(map[string]*Workflow)}
}

// Add registers a plan, replacing any existing plan with the same name.
func (l *Library) Add(w *Workflow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plans[normalize(w.Name)] = w
	return nil
}

// LoadDir loads every .yaml/.yml file under dir, non-recursively.
func (l *Library) LoadDir(dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*.y*ml"))
	if err != nil {
		return fmt.Errorf("workflow: scan %s: %w", dir, err)
	}
	for _, path := range entries {
		w, err := Load(path)
		if err != nil {
			return err
		}
		if err := l.Add(w); err != nil {
			return err
		}
	}
	return nil
}

// LoadFS loads every .yaml/.yml file from the root of fsys. Used with
// embedded plan bundles.
func (l *Library) LoadFS(fsys fs.FS) error {
	entries, err := fs.Glob(fsys, "*.y*ml")
	if err != nil {
		return err
	}
	for _, name := range entries {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("workflow: read %s: %w", name, err)
		}
		w, err := Parse(data)
		if err != nil {
			return err
		}
		if err := l.Add(w); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the plan whose name matches the goal after
// normalization, or nil when no plan matches. Matching is exact on the
// normalized form; fuzzy goal-to-plan routing is the caller's concern.
func (l *Library) Lookup(goal string) *Workflow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.plans[normalize(goal)]
}

// Get returns the plan by its declared name, or nil.
func (l *Library) Get(name string) *Workflow {
	return l.Lookup(name)
}

// Names lists the loaded plan names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.plans))
	for _, w := range l.plans {
		names = append(names, w.Name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of loaded plans.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.plans)
}

// normalize lowercases and collapses separators so "Check-Out Cart" and
// "check out cart" address the same plan.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, " ")
}
