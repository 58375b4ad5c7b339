// Package cli is the deskpal command line: the long-running reminder service
// and one-shot schedule commands against the same store.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	dbDriver string
	dbURI    string
	logLevel string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "deskpal",
		Short: "DeskPal - desktop schedule reminders",
		Long: `DeskPal keeps a list of schedules and reminds you when they are due.

Run "deskpal serve" to start the reminder service. The other commands edit the
same store and take effect on a running service within one tick.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&opts.dbDriver, "db-driver", "", "Database driver: sqlite or postgres (overrides DB_DRIVER)")
	root.PersistentFlags().StringVar(&opts.dbURI, "db", "", "Database path or URI (overrides DATABASE_URI)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newAddCmd(opts))
	root.AddCommand(newUpdateCmd(opts))
	root.AddCommand(newDeleteCmd(opts))
	root.AddCommand(newClearCmd(opts))
	root.AddCommand(newFindCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newChatCmd(opts))
	return root
}

// Execute runs the root command
func Execute(version string) error {
	return execute(context.Background(), NewRootCmd(version), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, out, errOut io.Writer) error {
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return err
	}
	return nil
}
