package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbfixture/internal/fixture"
	"github.com/roach88/dbfixture/internal/verify"
)

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Query   string     `json:"query"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "check <query> [args...]",
		Short: "Run a query and print or check its result",
		Long: `Run a query against the test database and print the result.

With --rows the command fails (exit code 1) unless the query returns exactly
that many rows. Extra arguments are bound to the query's placeholders.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd.Flags().Changed("rows"), rows, args, cmd)
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "expected row count")

	return cmd
}

func runCheck(opts *RootOptions, checkRows bool, rows int, args []string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	db, err := s.mgr.DB(ctx)
	if err != nil {
		return s.fail(err)
	}

	query := args[0]
	params := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		params = append(params, a)
	}

	c, err := verify.FromQuery(ctx, db, s.mgr.Interpreter(ctx), query, params...)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeQuery, err, nil)
	}

	var text bytes.Buffer
	if err := c.Print(&text); err != nil {
		return s.fail(err)
	}
	if checkRows {
		if err := c.AssertRowCount(rows); err != nil {
			return s.out.Fail(ExitFailure, ErrCodeCheck, err, strings.TrimSuffix(text.String(), "\n"))
		}
	}

	res := CheckResult{Query: query, Columns: c.Result().Columns, Rows: stringRows(c.Result())}
	return s.out.Success(res, strings.TrimSuffix(text.String(), "\n")+
		fmt.Sprintf("\n(%d row(s))", c.RowCount()))
}

func stringRows(r *verify.Result) [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fixture.FormatValue(v)
		}
	}
	return out
}
