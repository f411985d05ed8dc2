package state

import (
	"errors"
	"testing"
	"time"

	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/tree"
)

func TestSelectionModeMatchesUnion(t *testing.T) {
	s := NewSelectionSet()
	steps := []struct {
		kind models.NodeKind
		id   int64
	}{
		{models.KindFile, 1},
		{models.KindFolder, 1},
		{models.KindFile, 1},
		{models.KindFile, 2},
		{models.KindFolder, 1},
		{models.KindFile, 2},
	}
	for i, st := range steps {
		s.Toggle(st.kind, st.id)
		want := len(s.FileIDs())+len(s.FolderIDs()) > 0
		if s.InSelectionMode() != want {
			t.Errorf("step %d: InSelectionMode() = %v, want %v", i, s.InSelectionMode(), want)
		}
	}
	if s.InSelectionMode() {
		t.Error("all toggles undone, selection should be empty")
	}
}

func TestSelectionKindsAreDisjoint(t *testing.T) {
	var s SelectionSet
	s.Toggle(models.KindFile, 7)
	if s.Contains(models.KindFolder, 7) {
		t.Error("file id leaked into the folder set")
	}
	s.Toggle(models.KindFolder, 7)
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
	c := s.Clone()
	s.Clear()
	if c.Count() != 2 {
		t.Error("Clone shares state with the original")
	}
}

func TestNewContextMenu(t *testing.T) {
	if m := NewContextMenu(1, 2, nil); m.Target != TargetBackground || !m.Open {
		t.Errorf("background menu = %+v", m)
	}
	if m := NewContextMenu(0, 0, &models.Folder{ID: 1}); m.Target != TargetFolder {
		t.Errorf("folder menu target = %s", m.Target)
	}
	if m := NewContextMenu(0, 0, &models.File{ID: 1}); m.Target != TargetFile {
		t.Errorf("file menu target = %s", m.Target)
	}
}

func TestFolderViewPublishesSnapshots(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	ch := bus.Subscribe(EventViewChanged, EventSelectionChanged)

	v := NewFolderView(models.ScopeMine, bus)
	v.SetListing(tree.Listing{Files: []*models.File{{ID: 1, Filename: "a.txt"}}})

	select {
	case e := <-ch:
		ev := e.(*ViewEvent)
		if ev.Snapshot.Listing.Len() != 1 {
			t.Errorf("snapshot listing len = %d, want 1", ev.Snapshot.Listing.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("no view event")
	}

	v.ToggleSelection(models.KindFile, 1)
	select {
	case e := <-ch:
		if e.Type() != EventSelectionChanged {
			t.Errorf("event type = %s", e.Type())
		}
		if !e.(*ViewEvent).Snapshot.SelectionMode() {
			t.Error("snapshot should be in selection mode")
		}
	case <-time.After(time.Second):
		t.Fatal("no selection event")
	}
}

func TestFolderViewSnapshotIsDeepCopy(t *testing.T) {
	v := NewFolderView(models.ScopeMine, nil)
	v.SetListing(tree.Listing{Files: []*models.File{{ID: 1, Filename: "a.txt"}}})

	snap := v.Snapshot()
	snap.Listing.Files[0].Filename = "changed"
	snap.Breadcrumbs[0].Name = "changed"

	if v.Listing().Files[0].Filename != "a.txt" {
		t.Error("snapshot listing aliases the view")
	}
	if v.Breadcrumbs()[0].Name != "My Files" {
		t.Error("snapshot breadcrumbs alias the view")
	}
}

func TestFolderViewEnterClears(t *testing.T) {
	v := NewFolderView(models.ScopeMine, nil)
	v.SetListing(tree.Listing{Files: []*models.File{{ID: 1}}})
	v.ToggleSelection(models.KindFile, 1)
	v.OpenContextMenu(NewContextMenu(3, 4, nil))

	folder := &models.Folder{ID: 9, Name: "docs"}
	v.Enter(models.ScopeMine, folder, []models.Breadcrumb{models.RootBreadcrumb(models.ScopeMine), {ID: models.ID(9), Name: "docs"}})

	snap := v.Snapshot()
	if snap.Listing.Len() != 0 || snap.SelectionMode() || snap.Menu.Open {
		t.Errorf("Enter did not clear: %+v", snap)
	}
	if id := v.CurrentFolderID(); id == nil || *id != 9 {
		t.Errorf("CurrentFolderID() = %v, want 9", id)
	}
	if len(snap.Breadcrumbs) != 2 {
		t.Errorf("breadcrumbs = %v", snap.Breadcrumbs)
	}
}

func TestFolderViewErrorAndLoading(t *testing.T) {
	v := NewFolderView(models.ScopeShared, nil)
	v.SetLoading(true)
	if !v.IsLoading() {
		t.Error("IsLoading() = false after SetLoading(true)")
	}
	v.SetError(errors.New("boom"))
	if v.Err() == nil {
		t.Error("Err() = nil after SetError")
	}
	v.SetListing(tree.Listing{})
	if v.Err() != nil {
		t.Error("SetListing should clear the error")
	}
}

func TestFolderViewSorted(t *testing.T) {
	v := NewFolderView(models.ScopeMine, nil)
	v.SetListing(tree.Listing{
		Files:   []*models.File{{ID: 1, Filename: "b.txt"}, {ID: 2, Filename: "a.txt"}},
		Folders: []*models.Folder{{ID: 3, Name: "z"}},
	})
	nodes := v.Sorted()
	if len(nodes) != 3 || nodes[0].NodeName() != "z" || nodes[1].NodeName() != "a.txt" {
		t.Errorf("Sorted() = %v", nodes)
	}
}
