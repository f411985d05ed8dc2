package tree

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/capiweb/capishare/internal/models"
)

// fakeFolders serves GetFolder and ListFolders from a map and counts calls.
type fakeFolders struct {
	folders map[int64]*models.Folder
	failGet map[int64]bool
	gets    int
}

func newFakeFolders(fs ...*models.Folder) *fakeFolders {
	m := make(map[int64]*models.Folder)
	for _, f := range fs {
		m[f.ID] = f
	}
	return &fakeFolders{folders: m, failGet: map[int64]bool{}}
}

func (f *fakeFolders) GetFolder(_ context.Context, id int64) (*models.Folder, error) {
	f.gets++
	if f.failGet[id] {
		return nil, errors.New("boom")
	}
	folder, ok := f.folders[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return folder, nil
}

func (f *fakeFolders) ListFolders(_ context.Context, parentID *int64, _ models.Scope) ([]*models.Folder, error) {
	var out []*models.Folder
	for id := int64(1); id <= int64(len(f.folders))+10; id++ {
		if folder, ok := f.folders[id]; ok && models.SameID(folder.ParentID, parentID) {
			out = append(out, folder)
		}
	}
	return out, nil
}

func folder(id int64, name string, parent *int64) *models.Folder {
	return &models.Folder{ID: id, Name: name, ParentID: parent}
}

func TestListingMutatorsDoNotModifyReceiver(t *testing.T) {
	l := Listing{
		Files:   []*models.File{{ID: 1, Filename: "a.txt"}, {ID: 2, Filename: "b.txt"}},
		Folders: []*models.Folder{folder(10, "docs", nil)},
	}

	renamed := l.RenameFile(1, "z.txt")
	if l.FindFile(1).Filename != "a.txt" {
		t.Error("RenameFile modified the receiver")
	}
	if renamed.FindFile(1).Filename != "z.txt" {
		t.Error("RenameFile did not rename")
	}

	removed := l.RemoveFolder(10)
	if len(l.Folders) != 1 || len(removed.Folders) != 0 {
		t.Errorf("RemoveFolder: receiver=%d result=%d", len(l.Folders), len(removed.Folders))
	}

	viewed := l.SetFileViewed(2, true)
	if l.UnreadCount() != 2 || viewed.UnreadCount() != 1 {
		t.Errorf("UnreadCount: receiver=%d result=%d", l.UnreadCount(), viewed.UnreadCount())
	}

	added := l.AddFolder(folder(10, "renamed", nil))
	if len(added.Folders) != 1 || added.FindFolder(10).Name != "renamed" {
		t.Errorf("AddFolder should replace by id, got %+v", added.Folders)
	}
	if !l.Contains(models.KindFile, 2) || l.Contains(models.KindFolder, 2) {
		t.Error("Contains mismatched kinds")
	}
}

func TestAncestorChain(t *testing.T) {
	src := newFakeFolders(folder(1, "a", nil), folder(2, "b", models.ID(1)), folder(3, "c", models.ID(2)))

	chain, err := AncestorChain(context.Background(), src, 3, 10)
	if err != nil {
		t.Fatalf("AncestorChain() error = %v", err)
	}
	var ids []int64
	for _, f := range chain {
		ids = append(ids, f.ID)
	}
	if !reflect.DeepEqual(ids, []int64{3, 2, 1}) {
		t.Errorf("chain = %v, want [3 2 1]", ids)
	}

	if _, err := AncestorChain(context.Background(), src, 3, 2); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("depth limit error = %v, want ErrDepthExceeded", err)
	}
}

func TestAncestorChainLoop(t *testing.T) {
	src := newFakeFolders(folder(1, "a", models.ID(2)), folder(2, "b", models.ID(1)))
	if _, err := AncestorChain(context.Background(), src, 1, 10); !errors.Is(err, ErrAncestryLoop) {
		t.Errorf("error = %v, want ErrAncestryLoop", err)
	}
}

func TestIsDescendantOrSelf(t *testing.T) {
	src := newFakeFolders(folder(1, "a", nil), folder(2, "b", models.ID(1)), folder(3, "c", models.ID(2)), folder(4, "d", nil))
	ctx := context.Background()

	tests := []struct {
		ancestor, target int64
		want             bool
	}{
		{1, 1, true},
		{1, 3, true},
		{2, 3, true},
		{3, 1, false},
		{4, 3, false},
	}
	for _, tt := range tests {
		got, err := IsDescendantOrSelf(ctx, src, tt.ancestor, tt.target, 10)
		if err != nil {
			t.Fatalf("IsDescendantOrSelf(%d, %d) error = %v", tt.ancestor, tt.target, err)
		}
		if got != tt.want {
			t.Errorf("IsDescendantOrSelf(%d, %d) = %v, want %v", tt.ancestor, tt.target, got, tt.want)
		}
	}

	src.gets = 0
	if ok, _ := IsDescendantOrSelf(ctx, src, 5, 5, 10); !ok || src.gets != 0 {
		t.Errorf("self check should not fetch, gets = %d", src.gets)
	}
}

func TestBuildBreadcrumbs(t *testing.T) {
	src := newFakeFolders(folder(1, "a", nil), folder(2, "b", models.ID(1)), folder(3, "c", models.ID(2)))
	ctx := context.Background()

	crumbs := BuildBreadcrumbs(ctx, src, models.ScopeMine, src.folders[3], 10)
	names := crumbNames(crumbs)
	if !reflect.DeepEqual(names, []string{"My Files", "a", "b", "c"}) {
		t.Errorf("breadcrumbs = %v", names)
	}
	if !crumbs[0].IsRoot() || crumbs[3].IsRoot() {
		t.Error("only the first crumb is the root sentinel")
	}

	again := BuildBreadcrumbs(ctx, src, models.ScopeMine, src.folders[3], 10)
	if !reflect.DeepEqual(crumbNames(again), names) {
		t.Error("BuildBreadcrumbs is not idempotent")
	}

	if root := BuildBreadcrumbs(ctx, src, models.ScopeShared, nil, 10); len(root) != 1 || root[0].Name != "Shared with me" {
		t.Errorf("root breadcrumbs = %v", crumbNames(root))
	}

	src.failGet[1] = true
	fallback := BuildBreadcrumbs(ctx, src, models.ScopeMine, src.folders[3], 10)
	if !reflect.DeepEqual(crumbNames(fallback), []string{"My Files", "c"}) {
		t.Errorf("fallback breadcrumbs = %v, want [My Files c]", crumbNames(fallback))
	}
}

func crumbNames(crumbs []models.Breadcrumb) []string {
	out := make([]string, len(crumbs))
	for i, c := range crumbs {
		out[i] = c.Name
	}
	return out
}

func nodeNames(nodes []models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeName()
	}
	return out
}

func TestSortNumericCaseInsensitive(t *testing.T) {
	l := Listing{Files: []*models.File{
		{ID: 1, Filename: "file10.txt"},
		{ID: 2, Filename: "File2.txt"},
		{ID: 3, Filename: "file1.txt"},
	}}
	got := nodeNames(Sort(l, SortOptions{Field: SortByName, Order: Ascending}))
	want := []string{"file1.txt", "File2.txt", "file10.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sort = %v, want %v", got, want)
	}
}

func TestSortDescendingIsReverseWithoutTies(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Listing{Files: []*models.File{
		{ID: 1, Filename: "b", Size: 30, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 2, Filename: "a", Size: 10, CreatedAt: base},
		{ID: 3, Filename: "c", Size: 20, CreatedAt: base.Add(time.Hour)},
	}}

	for _, field := range []SortField{SortByName, SortByDate, SortBySize} {
		asc := nodeNames(Sort(l, SortOptions{Field: field, Order: Ascending}))
		desc := nodeNames(Sort(l, SortOptions{Field: field, Order: Descending}))
		for i := range asc {
			if asc[i] != desc[len(desc)-1-i] {
				t.Errorf("%s: desc %v is not reverse of asc %v", field, desc, asc)
				break
			}
		}
	}
}

func TestSortFoldersFirstPartition(t *testing.T) {
	l := Listing{
		Files:   []*models.File{{ID: 1, Filename: "a.txt", Size: 5}, {ID: 2, Filename: "z.txt", Size: 1}},
		Folders: []*models.Folder{folder(10, "b", nil), folder(11, "y", nil)},
	}

	for _, order := range []SortOrder{Ascending, Descending} {
		nodes := Sort(l, SortOptions{Field: SortByName, Order: order, FoldersFirst: true})
		for i, n := range nodes {
			wantFolder := i < 2
			if (n.Kind() == models.KindFolder) != wantFolder {
				t.Errorf("%s: node %d (%s) breaks the folders-first partition", order, i, n.NodeName())
			}
		}
	}

	mixed := nodeNames(Sort(l, SortOptions{Field: SortByName, Order: Ascending}))
	if !reflect.DeepEqual(mixed, []string{"a.txt", "b", "y", "z.txt"}) {
		t.Errorf("mixed sort = %v", mixed)
	}
}

func TestSortFoldersEqualOnSizeKeepsOrder(t *testing.T) {
	folders := []*models.Folder{folder(1, "z", nil), folder(2, "a", nil), folder(3, "m", nil)}
	for _, order := range []SortOrder{Ascending, Descending} {
		got := SortFolders(folders, SortOptions{Field: SortBySize, Order: order})
		if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
			t.Errorf("%s: size sort reordered equal folders", order)
		}
	}
	if folders[0].ID != 1 {
		t.Error("SortFolders modified its input")
	}
}

func TestParseSortOptions(t *testing.T) {
	opts, err := ParseSortOptions("SIZE", "desc", true)
	if err != nil || opts.Field != SortBySize || opts.Order != Descending || !opts.FoldersFirst {
		t.Errorf("ParseSortOptions = %+v, %v", opts, err)
	}
	if _, err := ParseSortOptions("color", "", false); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestFlattenMoveOptions(t *testing.T) {
	src := newFakeFolders(
		folder(1, "docs", nil),
		folder(2, "photos", nil),
		folder(3, "2024", models.ID(2)),
		folder(4, "summer", models.ID(3)),
	)

	opts, err := FlattenMoveOptions(context.Background(), src, models.ScopeMine, nil)
	if err != nil {
		t.Fatalf("FlattenMoveOptions() error = %v", err)
	}

	type row struct {
		name  string
		depth int
	}
	var got []row
	for _, o := range opts {
		got = append(got, row{o.Name, o.Depth})
	}
	want := []row{{"My Files", 0}, {"docs", 1}, {"photos", 1}, {"2024", 2}, {"summer", 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("options = %v, want %v", got, want)
	}
	if opts[0].ID != nil {
		t.Error("root option must have nil id")
	}
}
