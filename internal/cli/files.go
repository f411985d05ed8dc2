package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/navigator"
	"github.com/capiweb/capishare/internal/services"
	"github.com/capiweb/capishare/internal/state"
	"github.com/capiweb/capishare/internal/tree"
	"github.com/capiweb/capishare/internal/util/filter"
	ustrings "github.com/capiweb/capishare/internal/util/strings"
)

// accessFetchLimit caps concurrent access-list requests for ls --long.
const accessFetchLimit = 4

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var sortField, sortOrder string
	var foldersFirst, long bool
	var flt *filter.Config

	cmd := &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List a folder",
		Long: `List the files and folders of a folder. Without an argument the scope
root is listed.

Examples:
  # List the root of your own files
  capishare ls

  # List folder 42, newest first
  capishare ls 42 --sort date --order desc

  # Files shared with you, with sizes and access grants
  capishare ls --scope shared --long

  # Only the images of folder 42
  capishare ls 42 --include '*.png,*.jpg'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			folder, err := parseFolderArg(arg)
			if err != nil {
				return err
			}
			opts, err := tree.ParseSortOptions(sortField, sortOrder, foldersFirst)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folder)
			if err != nil {
				return err
			}
			nav.SetSort(opts)

			nodes := filter.Nodes(nav.Sorted(), *flt)
			var grants map[string][]models.AccessGrant
			if long {
				grants, err = fetchGrants(ctx, app, nodes)
				if err != nil {
					GetLogger().Warn().Err(err).Msg("Some access lists could not be loaded")
				}
			}
			printListing(cmd.OutOrStdout(), nav.Snapshot(), nodes, long, grants)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortField, "sort", string(tree.SortByName), "Sort by name, date or size")
	cmd.Flags().StringVar(&sortOrder, "order", string(tree.Ascending), "Sort order: asc or desc")
	cmd.Flags().BoolVar(&foldersFirst, "folders-first", true, "List folders before files")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show sizes, dates and access grants")
	flt = filterFlags(cmd)

	return cmd
}

// filterFlags binds --include, --exclude and --search to cmd.
func filterFlags(cmd *cobra.Command) *filter.Config {
	f := &filter.Config{}
	cmd.Flags().StringSliceVar(&f.Include, "include", nil, "Only files matching these glob patterns")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", nil, "Skip files matching these glob patterns")
	cmd.Flags().StringSliceVar(&f.Search, "search", nil, "Only files whose name contains every term")
	return f
}

func nodeKey(n models.Node) string {
	return fmt.Sprintf("%s:%d", n.Kind(), n.NodeID())
}

// fetchGrants loads the access list of every node. Nodes whose list cannot
// be loaded are left out; the first error is returned.
func fetchGrants(ctx context.Context, app *services.App, nodes []models.Node) (map[string][]models.AccessGrant, error) {
	grants := make([][]models.AccessGrant, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accessFetchLimit)
	for i, n := range nodes {
		g.Go(func() error {
			var err error
			if n.Kind() == models.KindFolder {
				grants[i], err = app.Client().ListFolderAccess(gctx, n.NodeID())
			} else {
				grants[i], err = app.Client().ListFileAccess(gctx, n.NodeID())
			}
			return err
		})
	}
	err := g.Wait()

	out := make(map[string][]models.AccessGrant, len(nodes))
	for i, n := range nodes {
		if grants[i] != nil {
			out[nodeKey(n)] = grants[i]
		}
	}
	return out, err
}

func formatPath(crumbs []models.Breadcrumb) string {
	names := make([]string, len(crumbs))
	for i, c := range crumbs {
		names[i] = c.Name
	}
	return strings.Join(names, " / ")
}

func formatGrants(grants []models.AccessGrant) string {
	if len(grants) == 0 {
		return "-"
	}
	parts := make([]string, len(grants))
	for i, g := range grants {
		parts[i] = fmt.Sprintf("%s(%s)", g.Username, g.Permission)
	}
	return strings.Join(parts, ",")
}

// printListing writes a folder listing as a table.
func printListing(w io.Writer, snap state.ViewSnapshot, nodes []models.Node, long bool, grants map[string][]models.AccessGrant) {
	fmt.Fprintf(w, "%s\n", formatPath(snap.Breadcrumbs))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if long {
		fmt.Fprintln(tw, "TYPE\tID\tNAME\tSIZE\tCREATED\tACCESS")
	} else {
		fmt.Fprintln(tw, "TYPE\tID\tNAME")
	}
	for _, n := range nodes {
		name := n.NodeName()
		size := "-"
		if f, ok := n.(*models.File); ok {
			if !f.IsViewed {
				name += " *"
			}
			size = ustrings.FormatBytes(f.Size)
		} else {
			name += "/"
		}
		if long {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", n.Kind(), n.NodeID(), name, size,
				n.Created().Local().Format("2006-01-02 15:04"), formatGrants(grants[nodeKey(n)]))
		} else {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", n.Kind(), n.NodeID(), name)
		}
	}
	tw.Flush()

	files := int64(len(snap.Listing.Files))
	folders := int64(len(snap.Listing.Folders))
	fmt.Fprintf(w, "%d %s, %d %s", folders, ustrings.Pluralize("folder", folders), files, ustrings.Pluralize("file", files))
	if unread := snap.UnreadCount(); unread > 0 {
		fmt.Fprintf(w, " (%d unread)", unread)
	}
	fmt.Fprintln(w)
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Long: `Create a folder in the scope root or inside --in.

Example:
  capishare mkdir "Project A" --in 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folderID, err := parseFolderArg(parent)
			if err != nil {
				return err
			}
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folderID)
			if err != nil {
				return err
			}
			folder, err := nav.CreateFolder(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to create folder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created folder %q (id %d)\n", folder.Name, folder.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Parent folder id (default: scope root)")
	return cmd
}

// parseKind parses "file" or "folder".
func parseKind(s string) (models.NodeKind, error) {
	switch models.NodeKind(strings.ToLower(s)) {
	case models.KindFile:
		return models.KindFile, nil
	case models.KindFolder:
		return models.KindFolder, nil
	}
	return "", fmt.Errorf("unknown kind %q (want file or folder)", s)
}

// findNode looks a node up in the navigator's current listing.
func findNode(nav *navigator.Navigator, kind models.NodeKind, id int64) (models.Node, error) {
	listing := nav.Snapshot().Listing
	if kind == models.KindFolder {
		if f := listing.FindFolder(id); f != nil {
			return f, nil
		}
	} else if f := listing.FindFile(id); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%s %d: %w", kind, id, navigator.ErrNotInListing)
}

// selectNodes puts the given ids into the navigator's selection.
func selectNodes(nav *navigator.Navigator, fileIDs, folderIDs []int64) error {
	for _, id := range fileIDs {
		n, err := findNode(nav, models.KindFile, id)
		if err != nil {
			return err
		}
		if !nav.Selection().Contains(models.KindFile, id) {
			nav.ToggleSelection(n)
		}
	}
	for _, id := range folderIDs {
		n, err := findNode(nav, models.KindFolder, id)
		if err != nil {
			return err
		}
		if !nav.Selection().Contains(models.KindFolder, id) {
			nav.ToggleSelection(n)
		}
	}
	return nil
}

// newRenameCmd creates the 'rename' command.
func newRenameCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "rename <file|folder> <id> <new-name>",
		Short: "Rename a file or folder",
		Long: `Rename a file or folder.

Examples:
  capishare rename file 1234 report-final.pdf
  capishare rename folder 42 "Project B" --in 7`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			folderID, err := parseFolderArg(parent)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folderID)
			if err != nil {
				return err
			}
			if kind == models.KindFolder {
				err = nav.RenameFolder(ctx, id, args[2])
			} else {
				err = nav.RenameFile(ctx, id, args[2])
			}
			if err != nil {
				return fmt.Errorf("failed to rename %s %d: %w", kind, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s %d to %q\n", kind, id, strings.TrimSpace(args[2]))
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Folder containing the item (default: scope root)")
	return cmd
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var parent string
	var fileIDs, folderIDs []int64
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete files and folders",
		Long: `Delete files and folders of one folder. Folders are deleted with
everything inside them.

Examples:
  capishare rm --file 1234 --file 1235
  capishare rm --in 42 --folder 43 --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(fileIDs) == 0 && len(folderIDs) == 0 {
				return fmt.Errorf("nothing to delete: use --file or --folder")
			}
			folderID, err := parseFolderArg(parent)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folderID)
			if err != nil {
				return err
			}
			if err := selectNodes(nav, fileIDs, folderIDs); err != nil {
				return err
			}

			count := int64(nav.Selection().Count())
			if !yes {
				q := fmt.Sprintf("Delete %d %s?", count, ustrings.Pluralize("item", count))
				ok, err := promptConfirm(stdinReader(), cmd.ErrOrStderr(), q)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			return runBulkDelete(ctx, cmd.OutOrStdout(), nav)
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Folder containing the items (default: scope root)")
	cmd.Flags().Int64SliceVar(&fileIDs, "file", nil, "File id to delete (repeatable)")
	cmd.Flags().Int64SliceVar(&folderIDs, "folder", nil, "Folder id to delete (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runBulkDelete(ctx context.Context, w io.Writer, nav *navigator.Navigator) error {
	deleted, err := nav.BulkDelete(ctx)
	fmt.Fprintf(w, "Deleted %d %s\n", deleted, ustrings.Pluralize("item", int64(deleted)))
	return err
}

// newMvCmd creates the 'mv' command.
func newMvCmd() *cobra.Command {
	var parent, target string

	cmd := &cobra.Command{
		Use:   "mv <file|folder> <id> --to <folder-id|root>",
		Short: "Move a file or folder",
		Long: `Move a file or folder into another folder, or to the scope root.
Moving a folder into itself or one of its subfolders is refused.

Examples:
  capishare mv file 1234 --to 42
  capishare mv folder 43 --in 42 --to root`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			folderID, err := parseFolderArg(parent)
			if err != nil {
				return err
			}
			targetID, err := parseFolderArg(target)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folderID)
			if err != nil {
				return err
			}
			node, err := findNode(nav, kind, id)
			if err != nil {
				return err
			}
			if err := nav.Move(ctx, node, targetID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s %q to %s\n", kind, node.NodeName(), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Folder containing the item (default: scope root)")
	cmd.Flags().StringVar(&target, "to", "", "Destination folder id, or root")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
