// Package tree holds the folder/file listing of one folder and the walks
// over the server-side folder hierarchy: ancestry, breadcrumbs and move targets.
package tree

import (
	"github.com/capiweb/capishare/internal/models"
)

// Listing is the content of one folder. Mutators return a new Listing and
// leave the receiver untouched, so a published snapshot never changes.
type Listing struct {
	Files   []*models.File
	Folders []*models.Folder
}

// Len returns the number of nodes.
func (l Listing) Len() int {
	return len(l.Files) + len(l.Folders)
}

// FindFile returns the file with id, or nil.
func (l Listing) FindFile(id int64) *models.File {
	for _, f := range l.Files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// FindFolder returns the folder with id, or nil.
func (l Listing) FindFolder(id int64) *models.Folder {
	for _, f := range l.Folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Contains reports whether a node of kind with id is listed.
func (l Listing) Contains(kind models.NodeKind, id int64) bool {
	if kind == models.KindFolder {
		return l.FindFolder(id) != nil
	}
	return l.FindFile(id) != nil
}

// Nodes returns folders then files, unsorted.
func (l Listing) Nodes() []models.Node {
	nodes := make([]models.Node, 0, l.Len())
	for _, f := range l.Folders {
		nodes = append(nodes, f)
	}
	for _, f := range l.Files {
		nodes = append(nodes, f)
	}
	return nodes
}

// Clone returns a deep copy.
func (l Listing) Clone() Listing {
	out := Listing{
		Files:   make([]*models.File, len(l.Files)),
		Folders: make([]*models.Folder, len(l.Folders)),
	}
	for i, f := range l.Files {
		out.Files[i] = f.Clone()
	}
	for i, f := range l.Folders {
		out.Folders[i] = f.Clone()
	}
	return out
}

// Remove drops node from the listing.
func (l Listing) Remove(node models.Node) Listing {
	if node.Kind() == models.KindFolder {
		return l.RemoveFolder(node.NodeID())
	}
	return l.RemoveFile(node.NodeID())
}

// RemoveFile drops the file with id.
func (l Listing) RemoveFile(id int64) Listing {
	files := make([]*models.File, 0, len(l.Files))
	for _, f := range l.Files {
		if f.ID != id {
			files = append(files, f)
		}
	}
	return Listing{Files: files, Folders: l.Folders}
}

// RemoveFolder drops the folder with id.
func (l Listing) RemoveFolder(id int64) Listing {
	folders := make([]*models.Folder, 0, len(l.Folders))
	for _, f := range l.Folders {
		if f.ID != id {
			folders = append(folders, f)
		}
	}
	return Listing{Files: l.Files, Folders: folders}
}

// RenameFile sets the filename of the file with id.
func (l Listing) RenameFile(id int64, name string) Listing {
	return l.updateFile(id, func(f *models.File) { f.Filename = name })
}

// SetFileViewed sets the viewed flag of the file with id.
func (l Listing) SetFileViewed(id int64, viewed bool) Listing {
	return l.updateFile(id, func(f *models.File) { f.IsViewed = viewed })
}

func (l Listing) updateFile(id int64, fn func(*models.File)) Listing {
	files := make([]*models.File, len(l.Files))
	for i, f := range l.Files {
		if f.ID == id {
			f = f.Clone()
			fn(f)
		}
		files[i] = f
	}
	return Listing{Files: files, Folders: l.Folders}
}

// RenameFolder sets the name of the folder with id.
func (l Listing) RenameFolder(id int64, name string) Listing {
	folders := make([]*models.Folder, len(l.Folders))
	for i, f := range l.Folders {
		if f.ID == id {
			f = f.Clone()
			f.Name = name
		}
		folders[i] = f
	}
	return Listing{Files: l.Files, Folders: folders}
}

// AddFolder appends folder, replacing an existing entry with the same id.
func (l Listing) AddFolder(folder *models.Folder) Listing {
	out := l.RemoveFolder(folder.ID)
	out.Folders = append(out.Folders, folder)
	return out
}

// UnreadCount returns the number of files not yet viewed.
func (l Listing) UnreadCount() int {
	n := 0
	for _, f := range l.Files {
		if !f.IsViewed {
			n++
		}
	}
	return n
}
