package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/localfs"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/navigator"
	"github.com/capiweb/capishare/internal/pathutil"
	"github.com/capiweb/capishare/internal/services"
	"github.com/capiweb/capishare/internal/tree"
	"github.com/capiweb/capishare/internal/util/filter"
	ustrings "github.com/capiweb/capishare/internal/util/strings"
)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

const shellHelp = `Commands:
  ls [pattern,...]            list the current folder, optionally only matching files
  cd <folder-id|..|/>         enter a folder, its parent or the root
  pwd                         show the current path
  scope <mine|shared|sent>    switch scope
  sort <name|date|size> [asc|desc]
  select <file|folder> <id>   toggle an item in the selection
  clear                       empty the selection
  rm                          delete the selection
  download                    download the selection
  upload <path> [path...]     upload into the current folder
  lls [dir]                   list a local directory
  mv <file|folder> <id> <folder-id|root>
  mkdir <name>
  rename <file|folder> <id> <name>
  tree                        show all folders
  refresh                     reload the current folder
  exit                        leave the shell`

// newShellCmd creates the 'shell' command.
func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell [folder-id]",
		Short: "Browse files interactively",
		Long: `Start an interactive session on a folder. The listing refreshes by itself
when an upload started from the session finishes. Type 'help' for the
command list.`,
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

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithCancel(GetContext())
			defer cancel()

			nav, err := openNavigator(ctx, app, folder)
			if err != nil {
				return err
			}
			go nav.Watch(ctx)

			sh := newShell(app, nav, stdinReader(), cmd.OutOrStdout())
			return sh.run(ctx)
		},
	}
	return cmd
}

type shell struct {
	app *services.App
	nav *navigator.Navigator
	in  *bufio.Reader
	out io.Writer
}

func newShell(app *services.App, nav *navigator.Navigator, in *bufio.Reader, out io.Writer) *shell {
	return &shell{app: app, nav: nav, in: in, out: out}
}

func (s *shell) prompt() string {
	snap := s.nav.Snapshot()
	p := formatPath(snap.Breadcrumbs)
	if n := snap.Selection.Count(); n > 0 {
		p += fmt.Sprintf(" [%d selected]", n)
	}
	return p + "> "
}

// run reads commands until exit, end of input or ctx is done.
func (s *shell) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, s.prompt())
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			if !errors.Is(err, navigator.ErrNavigationDebounced) {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "exit", "quit":
		return errQuit
	case "ls":
		var flt filter.Config
		if len(args) > 0 {
			flt.Include = filter.ParsePatternList(strings.Join(args, ","))
		}
		printListing(s.out, s.nav.Snapshot(), filter.Nodes(s.nav.Sorted(), flt), false, nil)
		return nil
	case "pwd":
		fmt.Fprintln(s.out, formatPath(s.nav.Snapshot().Breadcrumbs))
		return nil
	case "cd":
		return s.cd(ctx, args)
	case "scope":
		if len(args) != 1 {
			return fmt.Errorf("usage: scope <mine|shared|sent>")
		}
		scope, err := models.ParseScope(args[0])
		if err != nil {
			return err
		}
		return s.loaded(s.nav.SetScope(ctx, scope))
	case "sort":
		return s.sort(args)
	case "select":
		return s.toggle(args)
	case "clear":
		s.nav.ClearSelection()
		return nil
	case "rm":
		return s.remove(ctx)
	case "download":
		return s.download(ctx)
	case "upload":
		return s.upload(args)
	case "lls":
		return s.localList(args)
	case "mv":
		return s.move(ctx, args)
	case "mkdir":
		if len(args) == 0 {
			return fmt.Errorf("usage: mkdir <name>")
		}
		folder, err := s.nav.CreateFolder(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Created folder %q (id %d)\n", folder.Name, folder.ID)
		return nil
	case "rename":
		return s.rename(ctx, args)
	case "tree":
		opts, err := s.nav.MoveOptions(ctx)
		if err != nil {
			return err
		}
		printTree(s.out, opts, true)
		return nil
	case "refresh":
		return s.loaded(s.nav.Refresh(ctx))
	}
	return fmt.Errorf("unknown command %q (type 'help')", cmd)
}

// loaded turns a failed load recorded in the view into an error.
func (s *shell) loaded(err error) error {
	if err != nil {
		return err
	}
	return s.nav.Snapshot().Err
}

func (s *shell) cd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cd <folder-id|..|/>")
	}
	snap := s.nav.Snapshot()

	switch args[0] {
	case "/", "root":
		return s.loaded(s.nav.NavigateTo(ctx, nil, nil))
	case "..":
		crumbs := snap.Breadcrumbs
		if len(crumbs) < 2 {
			return nil
		}
		parent := crumbs[len(crumbs)-2]
		if parent.IsRoot() {
			return s.loaded(s.nav.NavigateTo(ctx, nil, nil))
		}
		folder, err := s.app.Client().GetFolder(ctx, *parent.ID)
		if err != nil {
			return err
		}
		return s.loaded(s.nav.NavigateTo(ctx, folder, crumbs[:len(crumbs)-1]))
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if folder := snap.Listing.FindFolder(id); folder != nil {
		path := append(append([]models.Breadcrumb(nil), snap.Breadcrumbs...), models.Breadcrumb{ID: models.ID(folder.ID), Name: folder.Name})
		return s.loaded(s.nav.NavigateTo(ctx, folder, path))
	}
	return s.loaded(s.nav.NavigateToID(ctx, &id))
}

func (s *shell) sort(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: sort <name|date|size> [asc|desc]")
	}
	order := ""
	if len(args) == 2 {
		order = args[1]
	}
	opts, err := tree.ParseSortOptions(args[0], order, s.nav.Snapshot().Sort.FoldersFirst)
	if err != nil {
		return err
	}
	s.nav.SetSort(opts)
	return nil
}

func (s *shell) node(kindArg, idArg string) (models.Node, error) {
	kind, err := parseKind(kindArg)
	if err != nil {
		return nil, err
	}
	id, err := parseID(idArg)
	if err != nil {
		return nil, err
	}
	return findNode(s.nav, kind, id)
}

func (s *shell) toggle(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: select <file|folder> <id>")
	}
	node, err := s.node(args[0], args[1])
	if err != nil {
		return err
	}
	s.nav.ToggleSelection(node)
	return nil
}

func (s *shell) remove(ctx context.Context) error {
	count := int64(s.nav.Selection().Count())
	if count == 0 {
		return fmt.Errorf("nothing selected")
	}
	ok, err := promptConfirm(s.in, s.out, fmt.Sprintf("Delete %d %s?", count, ustrings.Pluralize("item", count)))
	if err != nil || !ok {
		return err
	}
	return runBulkDelete(ctx, s.out, s.nav)
}

func (s *shell) download(ctx context.Context) error {
	sub := subscribeTransfers(s.app)
	defer s.app.EventBus().Unsubscribe(sub)

	dl := s.app.BatchDownloader()
	if err := s.nav.BulkDownload(ctx, dl); err != nil {
		return err
	}
	batch := dl.Batch()
	res, err := followBatch(ctx, s.app, sub, batch, true)
	if err != nil {
		return err
	}
	if err := batchError(batch.Kind, res); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved to %s\n", s.app.Config().DownloadDir)
	return nil
}

// upload starts the batch and returns at once. The listing refreshes when
// it finishes.
func (s *shell) upload(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: upload <path> [path...]")
	}
	folder := s.nav.Snapshot().Folder
	var target *int64
	if folder != nil {
		target = models.ID(folder.ID)
	}
	paths, err := expandUploadPaths(context.Background(), args, false, false)
	if err != nil {
		return err
	}
	batch, err := s.app.Upload(paths, target)
	if err != nil {
		return err
	}
	n := int64(batch.Len())
	fmt.Fprintf(s.out, "Uploading %d %s in the background\n", n, ustrings.Pluralize("file", n))
	return nil
}

func (s *shell) move(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: mv <file|folder> <id> <folder-id|root>")
	}
	node, err := s.node(args[0], args[1])
	if err != nil {
		return err
	}
	target, err := parseFolderArg(args[2])
	if err != nil {
		return err
	}
	return s.nav.Move(ctx, node, target)
}

func (s *shell) rename(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: rename <file|folder> <id> <name>")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	name := strings.Join(args[2:], " ")
	if kind == models.KindFolder {
		return s.nav.RenameFolder(ctx, id, name)
	}
	return s.nav.RenameFile(ctx, id, name)
}

// localList prints a local directory so upload paths can be picked.
func (s *shell) localList(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: lls [dir]")
	}
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	dir, err := pathutil.ResolveAbsolutePath(arg)
	if err != nil {
		return err
	}
	entries, err := localfs.ListDirectory(dir, localfs.ListOptions{})
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, dir)
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(tw, "%s/\t\t%s\n", e.Name, e.ModTime.Format("2006-01-02 15:04"))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, ustrings.FormatBytes(e.Size), e.ModTime.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
