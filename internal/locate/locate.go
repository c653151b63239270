package locate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/dbfixture/internal/config"
)

// DefaultDir is the default resource directory, relative to the working
// directory.
const DefaultDir = "testdata"

// ErrResourceNotFound is returned when every search step misses.
var ErrResourceNotFound = errors.New("resource not found")

// Step identifies which search step produced a resource.
type Step int

const (
	StepDefaultDir Step = iota + 1
	StepCaller
	StepSearchPath
)

func (s Step) String() string {
	switch s {
	case StepDefaultDir:
		return "default directory"
	case StepCaller:
		return "caller directory"
	case StepSearchPath:
		return "search path"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Root is one entry of the unscoped search path.
type Root struct {
	Name string
	FS   fs.FS
}

// DirRoot returns a search-path root backed by a directory.
func DirRoot(dir string) Root {
	return Root{Name: dir, FS: os.DirFS(dir)}
}

// Resource is an opened resource. Callers must close it.
type Resource struct {
	io.ReadCloser

	// Name is the requested name.
	Name string
	// Location is where the resource was found.
	Location string
	// Step is the search step that found it.
	Step Step
}

// NotFoundError lists everything tried for a missing resource.
type NotFoundError struct {
	Name    string
	Tried   []string
	Callers []string
	WorkDir string
}

func (e *NotFoundError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "the file %q can't be found", e.Name)
	fmt.Fprintf(&buf, "; tried: [%s]", strings.Join(e.Tried, ", "))
	fmt.Fprintf(&buf, "; caller directories: [%s]", strings.Join(e.Callers, ", "))
	fmt.Fprintf(&buf, "; notice that the default location %q is relative to the working directory (%s)", DefaultDir, e.WorkDir)
	buf.WriteString(" and that fixture files kept next to Go sources must sit in a testdata/ directory" +
		" or on the search path (" + config.EnvPrefix + "_PATH) to be visible")
	return buf.String()
}

func (e *NotFoundError) Unwrap() error {
	return ErrResourceNotFound
}

// Locator finds named files by searching, in order, the default directory,
// the caller-supplied directories and the search path.
type Locator struct {
	dir   string
	roots []Root
	log   zerolog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithDefaultDir replaces DefaultDir.
func WithDefaultDir(dir string) Option {
	return func(l *Locator) {
		l.dir = dir
	}
}

// WithSearchPath replaces the search path.
func WithSearchPath(roots ...Root) Option {
	return func(l *Locator) {
		l.roots = roots
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Locator) {
		l.log = log
	}
}

// New creates a Locator whose search path is the working directory.
func New(opts ...Option) *Locator {
	l := &Locator{
		dir:   DefaultDir,
		roots: []Root{DirRoot(".")},
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromSettings creates a Locator whose search path comes from settings,
// falling back to the working directory when none is configured.
func FromSettings(s config.Settings, opts ...Option) *Locator {
	var roots []Root
	for _, dir := range s.SearchPath {
		roots = append(roots, DirRoot(dir))
	}
	if len(roots) > 0 {
		opts = append([]Option{WithSearchPath(roots...)}, opts...)
	}
	return New(opts...)
}

// Locate opens name. hints are directories associated with the caller,
// typically the calling test's package directory; they are searched after
// the default directory and before the search path.
func (l *Locator) Locate(name string, hints ...string) (*Resource, error) {
	if name == "" {
		return nil, fmt.Errorf("locate: empty resource name")
	}

	var tried []string
	callers := dedupe(hints)

	if filepath.IsAbs(name) {
		if f, ok := openFile(name); ok {
			l.found(name, name, StepDefaultDir)
			return &Resource{ReadCloser: f, Name: name, Location: name, Step: StepDefaultDir}, nil
		}
		return nil, l.notFound(name, []string{name}, callers)
	}

	// 1. default directory
	candidate := filepath.Join(l.dir, name)
	tried = append(tried, candidate)
	if f, ok := openFile(candidate); ok {
		l.found(name, candidate, StepDefaultDir)
		return &Resource{ReadCloser: f, Name: name, Location: candidate, Step: StepDefaultDir}, nil
	}

	// 2. next to the callers, deepest first
	for _, dir := range callers {
		candidate := filepath.Join(dir, name)
		tried = append(tried, candidate)
		if f, ok := openFile(candidate); ok {
			l.found(name, candidate, StepCaller)
			return &Resource{ReadCloser: f, Name: name, Location: candidate, Step: StepCaller}, nil
		}
	}

	// 3. search path
	rc, location, searched, err := l.search(name)
	tried = append(tried, searched...)
	if err == nil {
		l.found(name, location, StepSearchPath)
		return &Resource{ReadCloser: rc, Name: name, Location: location, Step: StepSearchPath}, nil
	}

	return nil, l.notFound(name, tried, callers)
}

// FindOnSearchPath opens name from the search path only.
func (l *Locator) FindOnSearchPath(name string) (io.ReadCloser, string, error) {
	rc, location, tried, err := l.search(name)
	if err != nil {
		return nil, "", &NotFoundError{Name: name, Tried: tried, WorkDir: workDir()}
	}
	return rc, location, nil
}

func (l *Locator) search(name string) (io.ReadCloser, string, []string, error) {
	fsName := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	var tried []string
	if !fs.ValidPath(fsName) {
		return nil, "", tried, fmt.Errorf("%q is not a valid search-path name", name)
	}

	for _, root := range l.roots {
		location := path.Join(filepath.ToSlash(root.Name), fsName)
		tried = append(tried, location)
		f, err := root.FS.Open(fsName)
		if err != nil {
			continue
		}
		if info, err := f.Stat(); err != nil || info.IsDir() {
			f.Close()
			continue
		}
		return f, location, tried, nil
	}
	return nil, "", tried, ErrResourceNotFound
}

func (l *Locator) found(name, location string, step Step) {
	l.log.Info().Str("name", name).Str("location", location).Stringer("step", step).Msg("loading file")
}

func (l *Locator) notFound(name string, tried, callers []string) error {
	err := &NotFoundError{Name: name, Tried: tried, Callers: callers, WorkDir: workDir()}
	l.log.Warn().Msg(err.Error())
	return err
}

func openFile(p string) (*os.File, bool) {
	f, err := os.Open(p)
	if err != nil {
		return nil, false
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, false
	}
	return f, true
}

// dedupe drops empty and repeated directories, keeping first occurrences.
func dedupe(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "<unknown>"
	}
	return wd
}
