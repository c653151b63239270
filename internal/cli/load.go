package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbfixture/internal/engine"
	"github.com/roach88/dbfixture/internal/fixture"
)

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Fixture   string         `json:"fixture"`
	Operation string         `json:"operation"`
	Tables    []TableSummary `json:"tables"`
}

// TableSummary is one table of a loaded fixture.
type TableSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var operation string

	cmd := &cobra.Command{
		Use:   "load <fixture>...",
		Short: "Apply fixture files to the test database",
		Long: `Apply one or more XML or YAML fixture files to the test database.

Files are composed in the order given. By default every table the fixture
mentions is emptied, in reverse order, and refilled with the fixture's rows.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, operation, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&operation, "operation", "o", engine.OpCleanInsert.String(),
		"operation (none|insert|delete-all|clean-insert)")

	return cmd
}

func runLoad(opts *RootOptions, operation string, files []string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	op, err := engine.ParseOperation(operation)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	e := s.engine(engine.WithSetUpOperation(op))
	store, err := e.Load(files)
	if err != nil {
		return s.fail(err)
	}
	if err := e.Apply(cmd.Context(), store); err != nil {
		return s.fail(err)
	}

	res := LoadResult{Fixture: store.Name(), Operation: op.String(), Tables: summarize(store)}
	return s.out.Success(res, fmt.Sprintf("✓ Applied %s (%s): %s", res.Fixture, res.Operation,
		strings.TrimSuffix(fixture.Describe(store.Tables()), "\n")))
}

func summarize(store *fixture.Store) []TableSummary {
	tables := store.Tables()
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableSummary{Name: t.Name, Rows: len(t.Rows)})
	}
	return out
}
