package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/models"
)

// newTreeCmd creates the 'tree' command.
func newTreeCmd() *cobra.Command {
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the folder hierarchy",
		Long: `Print every folder of the scope as an indented tree. These are the
destinations 'mv' accepts.

Example:
  capishare tree --ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, nil)
			if err != nil {
				return err
			}
			opts, err := nav.MoveOptions(ctx)
			if err != nil {
				return fmt.Errorf("failed to load folders: %w", err)
			}
			printTree(cmd.OutOrStdout(), opts, showIDs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show folder ids")
	return cmd
}

// printTree writes move options indented two spaces per level.
func printTree(w io.Writer, opts []models.MoveOption, showIDs bool) {
	for _, o := range opts {
		line := strings.Repeat("  ", o.Depth) + o.Name
		if showIDs && o.ID != nil {
			line += fmt.Sprintf(" (%d)", *o.ID)
		}
		fmt.Fprintln(w, line)
	}
}
