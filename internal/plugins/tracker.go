package plugins

import (
	"crypto/sha256"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ChangeTracker remembers the content digest of files at their last
// successful check, so lint plugins with LintDirtyModulesOnly only revisit
// changed files. Its memory is bounded; an evicted file counts as changed.
type ChangeTracker struct {
	checked *lru.Cache[string, [sha256.Size]byte]
}

func NewChangeTracker(size int) (*ChangeTracker, error) {
	c, err := lru.New[string, [sha256.Size]byte](size)
	if err != nil {
		return nil, err
	}
	return &ChangeTracker{checked: c}, nil
}

// Dirty reports whether content differs from the last successful check of
// path.
func (t *ChangeTracker) Dirty(path string, content []byte) bool {
	sum, ok := t.checked.Get(path)
	return !ok || sum != sha256.Sum256(content)
}

// MarkChecked records a successful check of path.
func (t *ChangeTracker) MarkChecked(path string, content []byte) {
	t.checked.Add(path, sha256.Sum256(content))
}

// Forget drops path so its next check always runs.
func (t *ChangeTracker) Forget(path string) {
	t.checked.Remove(path)
}

// Select returns, sorted, the files p should check. Without
// LintDirtyModulesOnly, or without a tracker, every matching file is
// returned.
func Select(p Plugin, t *ChangeTracker, files map[string][]byte) []string {
	var selected []string
	for path, content := range files {
		if !p.Matches(path) {
			continue
		}
		if p.Options.LintDirtyModulesOnly && t != nil && !t.Dirty(path, content) {
			continue
		}
		selected = append(selected, path)
	}
	slices.Sort(selected)
	return selected
}
