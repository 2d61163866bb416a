package recordstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/memoryctl/memoryctl/internal/memerr"
)

// Corpus manages the per-project record stores under one memory root and
// provides cross-project listing and search. Per §9's open question: list
// and search default to all projects unless a filter is supplied; the
// reinforcement detector always considers all projects.
type Corpus struct {
	root string

	mu     sync.RWMutex
	stores map[string]*Store
}

// OpenCorpus discovers existing project directories under root (if any)
// and is ready to open stores for new ones lazily.
func OpenCorpus(root string) (*Corpus, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	c := &Corpus{root: root, stores: map[string]*Store{}}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := c.Project(e.Name()); err != nil {
			log.Warn("skipping unreadable project directory", "project_id", e.Name(), "error", err)
		}
	}
	return c, nil
}

// Project returns (opening if necessary) the store for projectID.
func (c *Corpus) Project(projectID string) (*Store, error) {
	c.mu.RLock()
	s, ok := c.stores[projectID]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[projectID]; ok {
		return s, nil
	}
	s, err := Open(c.root, projectID)
	if err != nil {
		return nil, err
	}
	c.stores[projectID] = s
	return s, nil
}

// ProjectIDs returns the set of known project ids.
func (c *Corpus) ProjectIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.stores))
	for id := range c.stores {
		out = append(out, id)
	}
	return out
}

// Root returns the corpus's memory root directory.
func (c *Corpus) Root() string { return filepath.Clean(c.root) }

// List returns records across every known project (or just projectID, if
// non-empty), matching list/search's documented default.
func (c *Corpus) List(projectID string, includeArchived bool) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Record
	for id, s := range c.stores {
		if projectID != "" && id != projectID {
			continue
		}
		records, err := s.List(includeArchived)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Search runs SearchPredicate across every project unless Predicate.ProjectID
// is set, in which case it is scoped to that project's store only.
func (c *Corpus) Search(p SearchPredicate) ([]*Record, error) {
	if p.ProjectID != "" {
		s, err := c.Project(p.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Search(p)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Record
	for _, s := range c.stores {
		matches, err := s.Search(p)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// Update locates the store owning id and applies patch there.
func (c *Corpus) Update(id string, patch Patch, confidenceFn func(confirmations, contradictions int) float64) (*Record, error) {
	c.mu.RLock()
	stores := make([]*Store, 0, len(c.stores))
	for _, s := range c.stores {
		stores = append(stores, s)
	}
	c.mu.RUnlock()

	for _, s := range stores {
		if _, err := s.Get(id); err != nil {
			continue
		}
		return s.Update(id, patch, confidenceFn)
	}
	return nil, fmt.Errorf("%w: %s", memerr.ErrNotFound, id)
}

// Archive locates the store owning id and archives it there.
func (c *Corpus) Archive(id string, reason ArchiveReason) (bool, error) {
	c.mu.RLock()
	stores := make([]*Store, 0, len(c.stores))
	for _, s := range c.stores {
		stores = append(stores, s)
	}
	c.mu.RUnlock()

	for _, s := range stores {
		if _, err := s.Get(id); err != nil {
			continue
		}
		return s.Archive(id, reason)
	}
	return false, fmt.Errorf("%w: %s", memerr.ErrNotFound, id)
}

// Get looks up id across every known project store.
func (c *Corpus) Get(id string) (*Record, error) {
	c.mu.RLock()
	stores := make([]*Store, 0, len(c.stores))
	for _, s := range c.stores {
		stores = append(stores, s)
	}
	c.mu.RUnlock()

	var lastErr error
	for _, s := range stores {
		r, err := s.Get(id)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s", memerr.ErrNotFound, id)
	}
	return nil, lastErr
}
