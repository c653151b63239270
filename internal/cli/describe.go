package cli

import (
	"bytes"
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbfixture/internal/fixture"
)

// DescribeResult is the JSON payload of the describe command.
type DescribeResult struct {
	Fixture     string              `json:"fixture"`
	Tables      []TableSummary      `json:"tables"`
	Duplicates  map[string][]string `json:"duplicates,omitempty"`
	Description string              `json:"description"`
	XML         string              `json:"xml,omitempty"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		keys bool
		dump bool
	)

	cmd := &cobra.Command{
		Use:   "describe <fixture>...",
		Short: "Summarize fixture files without applying them",
		Long: `Print the tables and row counts of one or more fixture files.

With --keys the primary keys of each table are read from the test database
and duplicated keys in the fixture are reported. With --dump the composed
fixture is printed back as XML.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(rootOpts, keys, dump, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&keys, "keys", false, "report duplicated primary keys using the database schema")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the composed fixture as XML")

	return cmd
}

func runDescribe(opts *RootOptions, keys, dump bool, files []string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	store, err := s.engine().Load(files)
	if err != nil {
		return s.fail(err)
	}

	res := DescribeResult{Fixture: store.Name(), Tables: summarize(store)}
	var lookup fixture.KeyLookup
	if keys {
		if lookup, err = s.primaryKeys(cmd.Context()); err != nil {
			return s.fail(err)
		}
		res.Duplicates = make(map[string][]string)
		for _, t := range store.Tables() {
			if dups := fixture.FindDuplicates(t, lookup(t.Name)); len(dups) > 0 {
				res.Duplicates[t.Name] = dups
			}
		}
	}
	res.Description = fixture.DescribeWithKeys(store.Tables(), lookup)

	text := strings.TrimSuffix(res.Description, "\n")
	if dump {
		var buf bytes.Buffer
		if err := fixture.WriteXML(&buf, store.Tables()); err != nil {
			return s.fail(err)
		}
		res.XML = buf.String()
		text += "\n" + strings.TrimSuffix(res.XML, "\n")
	}
	return s.out.Success(res, text)
}

// primaryKeys reads primary-key columns from the live schema. Tables the
// database does not know have no keys.
func (s *session) primaryKeys(ctx context.Context) (fixture.KeyLookup, error) {
	db, err := s.mgr.DB(ctx)
	if err != nil {
		return nil, err
	}
	md := s.mgr.Metadata()
	return func(table string) []string {
		info, err := md.Table(ctx, db, table)
		if err != nil {
			s.log.Debug().Err(err).Str("table", table).Msg("no primary key information")
			return nil
		}
		return info.PrimaryKeys()
	}, nil
}
