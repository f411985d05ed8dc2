package tree

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/capiweb/capishare/internal/models"
)

// SortField selects the sort key.
type SortField string

const (
	SortByName SortField = "name"
	SortByDate SortField = "date"
	SortBySize SortField = "size"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// SortOptions controls Sort.
type SortOptions struct {
	Field        SortField
	Order        SortOrder
	FoldersFirst bool
}

// DefaultSortOptions sorts by name ascending with folders first.
func DefaultSortOptions() SortOptions {
	return SortOptions{Field: SortByName, Order: Ascending, FoldersFirst: true}
}

// ParseSortOptions builds options from flag values.
func ParseSortOptions(field, order string, foldersFirst bool) (SortOptions, error) {
	opts := SortOptions{FoldersFirst: foldersFirst}
	switch SortField(strings.ToLower(field)) {
	case "", SortByName:
		opts.Field = SortByName
	case SortByDate:
		opts.Field = SortByDate
	case SortBySize:
		opts.Field = SortBySize
	default:
		return opts, fmt.Errorf("unknown sort field %q (want name, date or size)", field)
	}
	switch SortOrder(strings.ToLower(order)) {
	case "", Ascending:
		opts.Order = Ascending
	case Descending:
		opts.Order = Descending
	default:
		return opts, fmt.Errorf("unknown sort order %q (want asc or desc)", order)
	}
	return opts, nil
}

// newCollator compares names numerically and case-insensitively, so
// "file2" sorts before "file10". Collators are not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
}

// compareNodes orders two nodes ascending on field. Folders have size 0, so
// they compare equal to each other on size.
func compareNodes(c *collate.Collator, field SortField, a, b models.Node) int {
	switch field {
	case SortByDate:
		return a.Created().Compare(b.Created())
	case SortBySize:
		sa, sb := nodeSize(a), nodeSize(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	default:
		return c.CompareString(a.NodeName(), b.NodeName())
	}
}

func nodeSize(n models.Node) int64 {
	if f, ok := n.(*models.File); ok {
		return f.Size
	}
	return 0
}

// sortNodes sorts nodes in place. Ties keep input order in both directions.
func sortNodes(nodes []models.Node, opts SortOptions) {
	c := newCollator()
	sign := 1
	if opts.Order == Descending {
		sign = -1
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return sign*compareNodes(c, opts.Field, nodes[i], nodes[j]) < 0
	})
}

// Sort returns the listing's nodes in display order. With FoldersFirst the
// folders and files are sorted separately and folders come first.
func Sort(l Listing, opts SortOptions) []models.Node {
	if !opts.FoldersFirst {
		nodes := l.Nodes()
		sortNodes(nodes, opts)
		return nodes
	}

	folders := make([]models.Node, 0, len(l.Folders))
	for _, f := range l.Folders {
		folders = append(folders, f)
	}
	files := make([]models.Node, 0, len(l.Files))
	for _, f := range l.Files {
		files = append(files, f)
	}
	sortNodes(folders, opts)
	sortNodes(files, opts)
	return append(folders, files...)
}

// SortFiles returns a sorted copy of files.
func SortFiles(files []*models.File, opts SortOptions) []*models.File {
	nodes := make([]models.Node, len(files))
	for i, f := range files {
		nodes[i] = f
	}
	sortNodes(nodes, opts)
	out := make([]*models.File, len(nodes))
	for i, n := range nodes {
		out[i] = n.(*models.File)
	}
	return out
}

// SortFolders returns a sorted copy of folders.
func SortFolders(folders []*models.Folder, opts SortOptions) []*models.Folder {
	nodes := make([]models.Node, len(folders))
	for i, f := range folders {
		nodes[i] = f
	}
	sortNodes(nodes, opts)
	out := make([]*models.Folder, len(nodes))
	for i, n := range nodes {
		out[i] = n.(*models.Folder)
	}
	return out
}
