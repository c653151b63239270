package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Key names one connection property.
type Key string

// The closed set of connection property keys.
const (
	KeyDriver   Key = "dbfixture.driver"
	KeyURL      Key = "dbfixture.url"
	KeyUsername Key = "dbfixture.username"
	KeyPassword Key = "dbfixture.password"
)

// DefaultFileName is the properties file looked up on the search path.
const DefaultFileName = "dbfixture.properties"

// Built-in defaults used when neither an override nor the properties file
// provides a value.
const (
	DefaultDriver   = "sqlite3"
	DefaultURL      = "file:testdata/testdb.sqlite?mode=rw"
	DefaultUsername = "sa"
	DefaultPassword = ""
)

// Keys lists the supported keys in a stable order.
var Keys = []Key{KeyDriver, KeyURL, KeyUsername, KeyPassword}

var defaults = map[Key]string{
	KeyDriver:   DefaultDriver,
	KeyURL:      DefaultURL,
	KeyUsername: DefaultUsername,
	KeyPassword: DefaultPassword,
}

// ErrUnknownConfigKey is returned for keys outside the supported set.
var ErrUnknownConfigKey = errors.New("unknown config key")

// UnknownKeyError reports a key that is not one of Keys.
type UnknownKeyError struct {
	Key Key
}

func (e *UnknownKeyError) Error() string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = string(k)
	}
	return fmt.Sprintf("the property %q is not known; the supported properties are: %s",
		e.Key, strings.Join(names, ","))
}

func (e *UnknownKeyError) Unwrap() error {
	return ErrUnknownConfigKey
}

// Properties is an immutable snapshot of resolved connection properties.
// It is passed explicitly to the connection layer.
type Properties struct {
	Driver   string
	URL      string
	Username string
	Password string
}

// With returns a copy of p with key set to value.
func (p Properties) With(key Key, value string) (Properties, error) {
	switch key {
	case KeyDriver:
		p.Driver = value
	case KeyURL:
		p.URL = value
	case KeyUsername:
		p.Username = value
	case KeyPassword:
		p.Password = value
	default:
		return p, &UnknownKeyError{Key: key}
	}
	return p, nil
}

// Finder opens a named file from the unscoped search path.
type Finder interface {
	FindOnSearchPath(name string) (io.ReadCloser, string, error)
}

// Resolver resolves connection properties through the cascade:
// explicit override, then the loaded properties file, then built-in defaults.
type Resolver struct {
	mu        sync.RWMutex
	overrides map[Key]string
	loaded    map[string]string
	source    string
	log       zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a resolver with no properties file loaded.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		overrides: make(map[Key]string),
		loaded:    map[string]string{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load creates a resolver and loads fileName through finder.
// A missing or unreadable file leaves the resolver on defaults.
func Load(finder Finder, fileName string, opts ...Option) *Resolver {
	r := NewResolver(opts...)
	if finder == nil {
		return r
	}
	if fileName == "" {
		fileName = DefaultFileName
	}

	rc, location, err := finder.FindOnSearchPath(fileName)
	if err != nil {
		r.log.Debug().Str("file", fileName).Msg("no connection properties file on the search path, using defaults")
		return r
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Str("file", location).Msg("failed to close properties file")
		}
	}()

	r.log.Info().Str("file", location).Msg("loading test DB configuration")
	if err := r.read(rc, location); err != nil {
		r.log.Warn().Err(err).Str("file", location).Msg("failed to read DB configuration, using defaults")
	}
	return r
}

// read parses a flat key=value document into the loaded layer.
//
// Unquoted and double-quoted values expand $NAME and ${NAME} from earlier
// keys and the environment; a value holding a literal $ must be
// single-quoted, e.g. dbfixture.password='pa$WORD'.
func (r *Resolver) read(src io.Reader, location string) error {
	values, err := godotenv.Parse(src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", location, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = values
	r.source = location
	return nil
}

// Source returns the location of the loaded properties file, or "".
func (r *Resolver) Source() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

// Resolve returns the value for key.
func (r *Resolver) Resolve(key Key) (string, error) {
	def, known := defaults[key]
	if !known {
		return "", &UnknownKeyError{Key: key}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.overrides[key]; ok {
		return v, nil
	}
	if v, ok := r.loaded[string(key)]; ok {
		return v, nil
	}
	return def, nil
}

// Override sets an explicit value for key and returns the previous override,
// if there was one.
func (r *Resolver) Override(key Key, value string) (string, bool, error) {
	if _, known := defaults[key]; !known {
		return "", false, &UnknownKeyError{Key: key}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.overrides[key]
	r.overrides[key] = value
	return prev, had, nil
}

// Properties snapshots every key.
func (r *Resolver) Properties() Properties {
	var p Properties
	for _, k := range Keys {
		v, _ := r.Resolve(k)
		p, _ = p.With(k, v)
	}
	return p
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the process-wide resolver, loading DefaultFileName through
// finder on the first call. Later calls return the same resolver and ignore
// their arguments.
func Default(finder Finder, opts ...Option) *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = Load(finder, DefaultFileName, opts...)
	})
	return defaultResolver
}
