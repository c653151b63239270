package cli

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/engine"
	"github.com/roach88/dbfixture/internal/locate"
	"github.com/roach88/dbfixture/internal/schema"
)

// session is what one command invocation works with.
type session struct {
	out      *OutputFormatter
	log      zerolog.Logger
	settings config.Settings
	loc      *locate.Locator
	props    config.Properties
	mgr      *conn.Manager
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    w != io.Writer(os.Stderr) || os.Getenv("NO_COLOR") != "",
	}).Level(level).With().Timestamp().Logger()
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s := &session{
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		settings: config.LoadSettings(),
	}
	s.log = newLogger(s.out.GetErrWriter(), opts.Verbose)

	locOpts := []locate.Option{locate.WithLogger(s.log)}
	if opts.Dir != "" {
		locOpts = append(locOpts, locate.WithDefaultDir(opts.Dir))
	}
	s.loc = locate.FromSettings(s.settings, locOpts...)

	r := config.Load(s.loc, opts.Config, config.WithLogger(s.log))
	for key, v := range map[config.Key]string{config.KeyDriver: opts.Driver, config.KeyURL: opts.URL} {
		if v == "" {
			continue
		}
		if _, _, err := r.Override(key, v); err != nil {
			return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, err, nil)
		}
	}
	s.props = r.Properties()
	s.mgr = conn.New(s.props,
		conn.WithLogger(s.log),
		conn.WithLockDiagnostics(s.settings.LockDiagnostics),
	)
	return s, nil
}

func (s *session) engine(opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{
		engine.WithLogger(s.log),
		engine.WithLocator(s.loc),
		engine.WithSettings(s.settings),
	}, opts...)
	return engine.New(s.mgr, opts...)
}

func (s *session) creator() *schema.Creator {
	return schema.New(s.mgr, s.loc, schema.WithLogger(s.log))
}

func (s *session) close() {
	if err := s.mgr.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close database")
	}
}

// fail maps err onto an exit code and error code, prints it and returns the
// ExitError.
func (s *session) fail(err error) error {
	var (
		apply   *engine.ApplyError
		connErr *conn.ConnectionError
		create  *schema.CreateError
	)
	switch {
	case errors.As(err, &create):
		return s.out.Fail(ExitCommandError, ErrCodeCreate, err, nil)
	case errors.Is(err, locate.ErrResourceNotFound):
		return s.out.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	case errors.As(err, &connErr):
		return s.out.Fail(ExitCommandError, ErrCodeConnection, err, connErr.Explanation)
	case errors.As(err, &apply):
		return s.out.Fail(ExitFailure, ErrCodeApply, err, apply.Description)
	default:
		return s.out.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
}
