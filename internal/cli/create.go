package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dbfixture/internal/schema"
)

// CreateResult is the JSON payload of the create command.
type CreateResult struct {
	URL     string `json:"url"`
	DDLFile string `json:"ddl_file"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var ddl string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the test database and run its DDL",
		Long: `Create the test database and initialize it from ` + schema.DDLFileName + `.

For SQLite the database file and its directory are created when missing.
With --ddl an additional DDL file is run after the bootstrap script.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, ddl, cmd)
		},
	}

	cmd.Flags().StringVar(&ddl, "ddl", "", "extra DDL file to run after "+schema.DDLFileName)

	return cmd
}

func runCreate(opts *RootOptions, ddl string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	c := s.creator()
	if err := c.CreateAndInitialize(ctx); err != nil {
		return s.fail(err)
	}
	if ddl != "" {
		if err := c.LoadDDL(ctx, ddl); err != nil {
			return s.fail(err)
		}
	}

	return s.out.Success(CreateResult{URL: s.props.URL, DDLFile: schema.DDLFileName},
		fmt.Sprintf("✓ Created test database %s", s.props.URL))
}
