package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ClearResult is the JSON payload of the clear command.
type ClearResult struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clear <table>",
		Short:         "Delete every row of a table",
		Long:          `Delete every row of a table. The name may be qualified as schema.table.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runClear(opts *RootOptions, table string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := s.engine().ClearTable(cmd.Context(), table)
	if err != nil {
		return s.fail(err)
	}
	return s.out.Success(ClearResult{Table: table, Deleted: n},
		fmt.Sprintf("✓ Deleted %d row(s) from %s", n, table))
}
