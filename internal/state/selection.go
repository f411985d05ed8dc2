package state

import (
	"sort"

	"github.com/capiweb/capishare/internal/models"
)

// SelectionSet holds selected file ids and folder ids in two disjoint sets.
// The zero value is an empty selection.
type SelectionSet struct {
	files   map[int64]struct{}
	folders map[int64]struct{}
}

// NewSelectionSet returns an empty selection.
func NewSelectionSet() SelectionSet {
	return SelectionSet{files: map[int64]struct{}{}, folders: map[int64]struct{}{}}
}

func (s *SelectionSet) set(kind models.NodeKind) map[int64]struct{} {
	if s.files == nil {
		s.files = map[int64]struct{}{}
	}
	if s.folders == nil {
		s.folders = map[int64]struct{}{}
	}
	if kind == models.KindFolder {
		return s.folders
	}
	return s.files
}

// Toggle adds id when absent and removes it when present. It returns whether
// the id is selected afterwards.
func (s *SelectionSet) Toggle(kind models.NodeKind, id int64) bool {
	set := s.set(kind)
	if _, ok := set[id]; ok {
		delete(set, id)
		return false
	}
	set[id] = struct{}{}
	return true
}

// Contains reports whether id of kind is selected.
func (s SelectionSet) Contains(kind models.NodeKind, id int64) bool {
	set := s.files
	if kind == models.KindFolder {
		set = s.folders
	}
	_, ok := set[id]
	return ok
}

// Remove deselects id of kind.
func (s *SelectionSet) Remove(kind models.NodeKind, id int64) {
	delete(s.set(kind), id)
}

// InSelectionMode is true exactly when the selection is non-empty.
func (s SelectionSet) InSelectionMode() bool {
	return s.Count() > 0
}

// Count returns the number of selected nodes.
func (s SelectionSet) Count() int {
	return len(s.files) + len(s.folders)
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.files = map[int64]struct{}{}
	s.folders = map[int64]struct{}{}
}

// FileIDs returns the selected file ids in ascending order.
func (s SelectionSet) FileIDs() []int64 {
	return sortedIDs(s.files)
}

// FolderIDs returns the selected folder ids in ascending order.
func (s SelectionSet) FolderIDs() []int64 {
	return sortedIDs(s.folders)
}

// Clone returns an independent copy.
func (s SelectionSet) Clone() SelectionSet {
	out := NewSelectionSet()
	for id := range s.files {
		out.files[id] = struct{}{}
	}
	for id := range s.folders {
		out.folders[id] = struct{}{}
	}
	return out
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
