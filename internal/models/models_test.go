package models

import (
	"encoding/json"
	"testing"
)

func TestDecodeList_BareArray(t *testing.T) {
	files, err := DecodeList[File]([]byte(`[{"id": 10, "filename": "a.txt", "size": 3, "folder": null}]`))
	if err != nil {
		t.Fatalf("DecodeList() error = %v", err)
	}
	if len(files) != 1 || files[0].ID != 10 || files[0].Folder != nil {
		t.Errorf("DecodeList() = %+v, want one root file with id 10", files)
	}
}

func TestDecodeList_Paginated(t *testing.T) {
	data := []byte(`{"count": 2, "next": null, "results": [{"id": 1, "name": "Docs", "parent": null}, {"id": 2, "name": "B", "parent": 1}]}`)
	folders, err := DecodeList[Folder](data)
	if err != nil {
		t.Fatalf("DecodeList() error = %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("len(folders) = %d, want 2", len(folders))
	}
	if folders[1].ParentID == nil || *folders[1].ParentID != 1 {
		t.Errorf("folders[1].ParentID = %v, want 1", folders[1].ParentID)
	}
}

func TestDecodeList_EmptyShapes(t *testing.T) {
	for _, in := range []string{"", "null", `{}`, `"x"`} {
		got, err := DecodeList[File]([]byte(in))
		if err != nil {
			t.Errorf("DecodeList(%q) error = %v", in, err)
			continue
		}
		if got == nil || len(got) != 0 {
			t.Errorf("DecodeList(%q) = %v, want empty non-nil slice", in, got)
		}
	}
}

func TestDecodeList_Malformed(t *testing.T) {
	if _, err := DecodeList[File]([]byte(`[{"id": "x"}]`)); err == nil {
		t.Error("DecodeList() expected error for malformed array")
	}
}

func TestNodeInterface(t *testing.T) {
	var nodes []Node = []Node{
		&File{ID: 10, Filename: "a.txt", Folder: ID(1)},
		&Folder{ID: 1, Name: "Docs"},
	}
	if nodes[0].Kind() != KindFile || nodes[1].Kind() != KindFolder {
		t.Errorf("kinds = %s, %s", nodes[0].Kind(), nodes[1].Kind())
	}
	if nodes[0].NodeName() != "a.txt" || *nodes[0].Parent() != 1 {
		t.Errorf("file node = %s parent %v", nodes[0].NodeName(), nodes[0].Parent())
	}
	if nodes[1].Parent() != nil {
		t.Errorf("root folder parent = %v, want nil", nodes[1].Parent())
	}
}

func TestClone_Independent(t *testing.T) {
	orig := &File{ID: 1, Filename: "x", Folder: ID(4)}
	c := orig.Clone()
	*c.Folder = 9
	c.Filename = "y"
	if *orig.Folder != 4 || orig.Filename != "x" {
		t.Errorf("Clone() shares state with original: %+v", orig)
	}
}

func TestSameID(t *testing.T) {
	tests := []struct {
		a, b *int64
		want bool
	}{
		{nil, nil, true},
		{ID(1), nil, false},
		{nil, ID(1), false},
		{ID(2), ID(2), true},
		{ID(2), ID(3), false},
	}
	for _, tt := range tests {
		if got := SameID(tt.a, tt.b); got != tt.want {
			t.Errorf("SameID(%v, %v) = %v, want %v", FormatID(tt.a), FormatID(tt.b), got, tt.want)
		}
	}
}

func TestScope(t *testing.T) {
	s, err := ParseScope("Shared")
	if err != nil || s != ScopeShared {
		t.Errorf("ParseScope(Shared) = %q, %v", s, err)
	}
	if s, _ := ParseScope(""); s != ScopeMine {
		t.Errorf("ParseScope(\"\") = %q, want mine", s)
	}
	if _, err := ParseScope("everything"); err == nil {
		t.Error("ParseScope(everything) expected error")
	}
	if got := RootBreadcrumb(ScopeSent); !got.IsRoot() || got.Name != "Sent" {
		t.Errorf("RootBreadcrumb(sent) = %+v", got)
	}
}

func TestIsImageIsArchive(t *testing.T) {
	if !IsImage("photo.JPG") || IsImage("notes.txt") {
		t.Error("IsImage misclassified")
	}
	if !IsArchive("backup.tar") || IsArchive("photo.png") {
		t.Error("IsArchive misclassified")
	}
}

func TestFileJSONRoundTripFields(t *testing.T) {
	var f File
	if err := json.Unmarshal([]byte(`{"id":3,"filename":"r.pdf","is_viewed":true,"created_at":"2024-05-01T10:00:00Z"}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !f.IsViewed || f.CreatedAt.Year() != 2024 {
		t.Errorf("decoded file = %+v", f)
	}
}
