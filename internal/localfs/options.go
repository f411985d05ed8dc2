package localfs

// ListOptions configures ListDirectory.
type ListOptions struct {
	// IncludeHidden includes dot files.
	IncludeHidden bool
}

// WalkOptions configures CollectFiles.
type WalkOptions struct {
	// IncludeHidden includes dot files and descends into dot directories.
	IncludeHidden bool
}
