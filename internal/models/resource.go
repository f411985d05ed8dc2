package models

import (
	"path"
	"strings"
	"time"
)

// NodeKind distinguishes the two resource node variants.
type NodeKind string

const (
	KindFile   NodeKind = "file"
	KindFolder NodeKind = "folder"
)

// Node is a file or a folder as observed from the server.
type Node interface {
	NodeID() int64
	NodeName() string
	// Parent returns the containing folder id, nil for the scope root.
	Parent() *int64
	Created() time.Time
	Kind() NodeKind
}

// File is a transferred file. The backend calls these "transfers".
type File struct {
	ID                int64         `json:"id"`
	Filename          string        `json:"filename"`
	Size              int64         `json:"size"`
	CreatedAt         time.Time     `json:"created_at"`
	IsViewed          bool          `json:"is_viewed"`
	Folder            *int64        `json:"folder"`
	OwnerID           int64         `json:"owner,omitempty"`
	UploaderID        int64         `json:"uploader,omitempty"`
	SenderUsername    string        `json:"sender_username,omitempty"`
	RecipientUsername string        `json:"recipient_username,omitempty"`
	IsSharedCopy      bool          `json:"is_shared_copy,omitempty"`
	AccessList        []AccessGrant `json:"access_list,omitempty"`
}

func (f *File) NodeID() int64      { return f.ID }
func (f *File) NodeName() string   { return f.Filename }
func (f *File) Parent() *int64     { return f.Folder }
func (f *File) Created() time.Time { return f.CreatedAt }
func (f *File) Kind() NodeKind     { return KindFile }

// Clone returns a copy that shares no mutable state with f.
func (f *File) Clone() *File {
	c := *f
	c.Folder = cloneID(f.Folder)
	c.AccessList = append([]AccessGrant(nil), f.AccessList...)
	return &c
}

// Folder is a user folder.
type Folder struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Owner      int64         `json:"owner"`
	ParentID   *int64        `json:"parent"`
	CreatedAt  time.Time     `json:"created_at"`
	AccessList []AccessGrant `json:"access_list,omitempty"`
}

func (f *Folder) NodeID() int64      { return f.ID }
func (f *Folder) NodeName() string   { return f.Name }
func (f *Folder) Parent() *int64     { return f.ParentID }
func (f *Folder) Created() time.Time { return f.CreatedAt }
func (f *Folder) Kind() NodeKind     { return KindFolder }

// Clone returns a copy that shares no mutable state with f.
func (f *Folder) Clone() *Folder {
	c := *f
	c.ParentID = cloneID(f.ParentID)
	c.AccessList = append([]AccessGrant(nil), f.AccessList...)
	return &c
}

// IsRoot reports whether the folder sits directly under the scope root.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// AccessGrant is a sharing grant on a file or folder.
type AccessGrant struct {
	UserID     int64      `json:"user"`
	Username   string     `json:"username"`
	Permission string     `json:"permission"` // "read" or "edit"
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Propagate  bool       `json:"propagate,omitempty"`
}

// ArchiveInfo is the server's inspection result for an archive file.
type ArchiveInfo struct {
	HasExecutables  bool     `json:"has_executables"`
	ExecutableFiles []string `json:"executable_files"`
}

// ID returns a pointer to a copy of id, for optional parent references.
func ID(id int64) *int64 {
	return &id
}

// SameID compares two optional ids, nil meaning the scope root.
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FormatID renders an optional id, "null" for the root.
func FormatID(id *int64) string {
	if id == nil {
		return "null"
	}
	return formatInt(*id)
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var archiveExts = map[string]bool{
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true, ".bz2": true,
}

// IsImage reports whether a filename has a thumbnail-capable extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// IsArchive reports whether a filename looks like a compressed archive.
func IsArchive(name string) bool {
	return archiveExts[strings.ToLower(path.Ext(name))]
}
