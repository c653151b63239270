package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config names the connection properties file on the search path.
	Config string
	// Driver and URL override the properties file when set.
	Driver string
	URL    string
	// Dir is the default fixture directory.
	Dir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dbfixture CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dbfixture",
		Short: "dbfixture - database fixtures for tests",
		Long: `Create test databases, apply XML or YAML fixtures to them and check
what they contain.

Connection properties come from dbfixture.properties on the search path
(DBFIXTURE_PATH, default: the working directory) unless overridden by flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "connection properties file (default dbfixture.properties)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|mysql|pgx)")
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "", "database URL or DSN")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "default fixture directory (default testdata)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}
