package recordstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memoryctl/memoryctl/internal/memerr"
)

var errCorruption = memerr.ErrCorruption

var pathTraversalChars = regexp.MustCompile(`[/\\]`)

// Store is the record store for one project: atomic read/write of memory
// records on disk under <root>/<project_id>/memories, plus the
// archived/ sibling directory and its daily manifest.
type Store struct {
	root string // <memory_root>/<project_id>
}

// Open returns a Store rooted at <memoryRoot>/<projectID>/memories,
// creating the directory tree if absent.
func Open(memoryRoot, projectID string) (*Store, error) {
	root := filepath.Join(memoryRoot, projectID, "memories")
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's active-records directory.
func (s *Store) Root() string { return s.root }

func (s *Store) archivedDir() string { return filepath.Join(s.root, "archived") }

// safePath sanitizes id by stripping path separators and ".." and
// verifies the resolved path remains under the given base directory.
func safePath(base, id string) (string, error) {
	safeID := pathTraversalChars.ReplaceAllString(id, "")
	safeID = strings.ReplaceAll(safeID, "..", "")
	if safeID == "" {
		return "", fmt.Errorf("%w: empty id after sanitization", memerr.ErrInvalidID)
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	path := filepath.Join(absBase, safeID+".md")
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	if !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) && resolved != absBase {
		return "", fmt.Errorf("%w: path traversal detected in id %q", memerr.ErrInvalidID, id)
	}
	return resolved, nil
}

func (s *Store) activePath(id string) (string, error)   { return safePath(s.root, id) }
func (s *Store) archivedPath(id string) (string, error)  { return safePath(s.archivedDir(), id) }

// NewID generates a lexicographically sortable id: millisecond timestamp
// plus a short random suffix, matching the record store's id contract.
func NewID() string {
	ts := time.Now().UTC().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%d-%s", ts, suffix)
}

// Create writes a new record, assigning a fresh id when r.ID is empty.
// Fails with ErrIDCollision if the id already exists.
func (s *Store) Create(r *Record) (*Record, error) {
	if r.ID == "" {
		r.ID = NewID()
	}
	path, err := s.activePath(r.ID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: id %q already exists", memerr.ErrIDCollision, r.ID)
	}

	now := time.Now().UTC()
	if r.Created.IsZero() {
		r.Created = now
	}
	r.Updated = now
	if r.SchemaVersion == 0 {
		r.SchemaVersion = SchemaVersion
	}
	if r.Scope == "" {
		r.Scope = ScopeProject
	}
	if r.RetrievalWeight == 0 {
		r.RetrievalWeight = r.Importance
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", memerr.ErrInvalidInput, err)
	}

	if err := atomicWrite(path, encodeRecord(r)); err != nil {
		return nil, err
	}
	log.Info("record created", "id", r.ID, "project_id", r.ProjectID)
	return r, nil
}

// Get reads a record, checking the active directory first, then archived/.
func (s *Store) Get(id string) (*Record, error) {
	activePath, err := s.activePath(id)
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(activePath); err == nil {
		return decodeRecord(string(data))
	}

	archivedPath, err := s.archivedPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(archivedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", memerr.ErrNotFound, id)
	}
	return decodeRecord(string(data))
}

// List returns all active records, and archived ones too if requested.
// Order is unspecified.
func (s *Store) List(includeArchived bool) ([]*Record, error) {
	var out []*Record
	out = append(out, s.listDir(s.root, false)...)
	if includeArchived {
		out = append(out, s.listDir(s.archivedDir(), true)...)
	}
	return out, nil
}

func (s *Store) listDir(dir string, skipManifests bool) []*Record {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if skipManifests && strings.HasSuffix(e.Name(), "-archive.md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		r, err := decodeRecord(string(data))
		if err != nil {
			log.Warn("skipping unparseable record", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Patch carries optional field updates for Update.
type Patch struct {
	Content         *string
	Scope           *Scope
	Tags            []string
	Importance      *float64
	ConfidenceScore *float64
	Confirmations   *int
	Contradictions  *int
	RetrievalWeight *float64
}

// Update merges patch fields into the existing record and rewrites the
// file, recomputing invariant-dependent derived fields (I3) before write.
func (s *Store) Update(id string, patch Patch, confidenceFn func(confirmations, contradictions int) float64) (*Record, error) {
	r, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil {
		r.Content = *patch.Content
	}
	if patch.Scope != nil {
		r.Scope = *patch.Scope
	}
	if patch.Tags != nil {
		r.Tags = patch.Tags
	}
	if patch.Importance != nil {
		r.Importance = Clamp01(*patch.Importance)
	}
	if patch.Confirmations != nil {
		r.Confirmations = *patch.Confirmations
	}
	if patch.Contradictions != nil {
		r.Contradictions = *patch.Contradictions
	}
	if patch.ConfidenceScore != nil {
		r.ConfidenceScore = Clamp01(*patch.ConfidenceScore)
	} else if confidenceFn != nil {
		r.ConfidenceScore = Clamp01(confidenceFn(r.Confirmations, r.Contradictions))
	}
	if patch.RetrievalWeight != nil {
		r.RetrievalWeight = Clamp01(*patch.RetrievalWeight)
	}
	r.Updated = time.Now().UTC()

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", memerr.ErrInvalidInput, err)
	}

	path, err := s.pathForScope(r)
	if err != nil {
		return nil, err
	}
	if err := atomicWrite(path, encodeRecord(r)); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) pathForScope(r *Record) (string, error) {
	if r.Scope == ScopeArchived {
		return s.archivedPath(r.ID)
	}
	return s.activePath(r.ID)
}

// ArchiveReason documents why a record was archived, for the manifest.
type ArchiveReason string

// Archive moves the record file from active to archived/, updating scope
// and tags. Idempotent: returns false if already archived or absent.
func (s *Store) Archive(id string, reason ArchiveReason) (bool, error) {
	activePath, err := s.activePath(id)
	if err != nil {
		return false, err
	}
	data, readErr := os.ReadFile(activePath)
	if readErr != nil {
		// Either already archived, or never existed; both are no-ops.
		return false, nil
	}

	r, err := decodeRecord(string(data))
	if err != nil {
		return false, fmt.Errorf("%w: %s", memerr.ErrCorruption, err)
	}

	r.Scope = ScopeArchived
	r.AddTag("#archived")
	r.Updated = time.Now().UTC()

	destPath, err := s.archivedPath(id)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(s.archivedDir(), 0755); err != nil {
		return false, fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	if err := atomicWrite(destPath, encodeRecord(r)); err != nil {
		return false, err
	}
	if err := os.Remove(activePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}

	if err := s.appendManifest(r, reason); err != nil {
		log.Warn("failed to append archive manifest", "id", id, "error", err)
	}

	log.Info("record archived", "id", id, "reason", reason)
	return true, nil
}

// appendManifest appends a line to the per-day manifest
// archived/YYYY-MM-DD-archive.md enumerating (memory_id, reason, importance).
func (s *Store) appendManifest(r *Record, reason ArchiveReason) error {
	day := time.Now().UTC().Format("2006-01-02")
	manifestPath := filepath.Join(s.archivedDir(), day+"-archive.md")

	line := fmt.Sprintf("- %s | reason=%s | importance=%s\n", r.ID, reason, formatFloat(r.Importance))

	f, err := os.OpenFile(manifestPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err == nil && stat.Size() == 0 {
		if _, err := f.WriteString(fmt.Sprintf("# Archive manifest for %s\n\n", day)); err != nil {
			return err
		}
	}
	_, err = f.WriteString(line)
	return err
}

// SearchPredicate filters candidate records during a linear scan.
type SearchPredicate struct {
	ProjectID       string // empty = any
	Scope           Scope  // empty = any
	Tag             string // empty = any
	ContentContains string // empty = any, case-insensitive
	IncludeArchived bool
}

// Search performs a linear scan; no index is assumed.
func (s *Store) Search(p SearchPredicate) ([]*Record, error) {
	records, err := s.List(p.IncludeArchived)
	if err != nil {
		return nil, err
	}
	var out []*Record
	needle := strings.ToLower(p.ContentContains)
	for _, r := range records {
		if p.ProjectID != "" && r.ProjectID != p.ProjectID {
			continue
		}
		if p.Scope != "" && r.Scope != p.Scope {
			continue
		}
		if p.Tag != "" && !r.HasTag(p.Tag) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Content), needle) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// atomicWrite writes data to a sibling temp file in the same directory,
// fsyncs, and renames onto target. Removes the temp file on any error
// path so no reader ever observes a partial header (I1).
func atomicWrite(target, data string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.WriteString(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s", memerr.ErrIO, err)
	}
	return nil
}
