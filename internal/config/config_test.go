package config

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapFinder serves files from memory.
type mapFinder map[string]string

func (f mapFinder) FindOnSearchPath(name string) (io.ReadCloser, string, error) {
	content, ok := f[name]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), "mem:" + name, nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

type failingFinder struct{}

func (failingFinder) FindOnSearchPath(name string) (io.ReadCloser, string, error) {
	return io.NopCloser(failingReader{}), "broken:" + name, nil
}

func TestResolve_DefaultsWithoutFile(t *testing.T) {
	r := Load(mapFinder{}, "")

	want := map[Key]string{
		KeyDriver:   DefaultDriver,
		KeyURL:      DefaultURL,
		KeyUsername: DefaultUsername,
		KeyPassword: DefaultPassword,
	}
	for key, expected := range want {
		got, err := r.Resolve(key)
		require.NoError(t, err)
		assert.Equal(t, expected, got, "key %s", key)
	}
	assert.Empty(t, r.Source())
}

func TestResolve_FileOverridesDefaults(t *testing.T) {
	r := Load(mapFinder{
		DefaultFileName: "# test database\n" +
			"dbfixture.url=file:other.db?mode=rw\n" +
			"dbfixture.username=tester\n",
	}, DefaultFileName)

	url, err := r.Resolve(KeyURL)
	require.NoError(t, err)
	assert.Equal(t, "file:other.db?mode=rw", url)

	user, err := r.Resolve(KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "tester", user)

	driver, err := r.Resolve(KeyDriver)
	require.NoError(t, err)
	assert.Equal(t, DefaultDriver, driver)

	assert.Equal(t, "mem:"+DefaultFileName, r.Source())
}

func TestResolve_DollarExpandsUnlessSingleQuoted(t *testing.T) {
	t.Setenv("DBFIXTURE_PW_TAIL", "ss")
	r := Load(mapFinder{
		DefaultFileName: "dbfixture.username=pa$DBFIXTURE_PW_TAIL\n" +
			"dbfixture.password='pa$DBFIXTURE_PW_TAIL'\n",
	}, DefaultFileName)

	user, err := r.Resolve(KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "pass", user)

	password, err := r.Resolve(KeyPassword)
	require.NoError(t, err)
	assert.Equal(t, "pa$DBFIXTURE_PW_TAIL", password)
}

func TestOverride_WinsOverFile(t *testing.T) {
	r := Load(mapFinder{
		DefaultFileName: "dbfixture.url=file:from-file.db\n",
	}, "")

	prev, had, err := r.Override(KeyURL, "file:explicit.db")
	require.NoError(t, err)
	assert.False(t, had)
	assert.Empty(t, prev)

	got, err := r.Resolve(KeyURL)
	require.NoError(t, err)
	assert.Equal(t, "file:explicit.db", got)

	prev, had, err = r.Override(KeyURL, "file:second.db")
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, "file:explicit.db", prev)
}

func TestResolve_UnknownKey(t *testing.T) {
	r := Load(mapFinder{
		DefaultFileName: "dbfixture.schema=APP\n",
	}, "")

	_, err := r.Resolve("dbfixture.schema")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigKey))
	assert.Contains(t, err.Error(), "dbfixture.schema")
	assert.Contains(t, err.Error(), string(KeyURL))

	_, _, err = r.Override("dbfixture.drvier", "mysql")
	assert.ErrorIs(t, err, ErrUnknownConfigKey)
}

func TestLoad_UnreadableFileFallsBackToDefaults(t *testing.T) {
	r := Load(failingFinder{}, "")

	got, err := r.Resolve(KeyURL)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, got)
	assert.Empty(t, r.Source())
}

func TestLoad_NilFinder(t *testing.T) {
	r := Load(nil, "")
	assert.Equal(t, Properties{
		Driver:   DefaultDriver,
		URL:      DefaultURL,
		Username: DefaultUsername,
		Password: DefaultPassword,
	}, r.Properties())
}

func TestProperties_Snapshot(t *testing.T) {
	r := NewResolver()
	_, _, err := r.Override(KeyPassword, "secret")
	require.NoError(t, err)

	snap := r.Properties()
	_, _, err = r.Override(KeyPassword, "changed")
	require.NoError(t, err)

	assert.Equal(t, "secret", snap.Password, "snapshot must not follow later overrides")
	assert.Equal(t, "changed", r.Properties().Password)
}

func TestProperties_With(t *testing.T) {
	p := Properties{Driver: "sqlite3"}

	q, err := p.With(KeyDriver, "mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", q.Driver)
	assert.Equal(t, "sqlite3", p.Driver)

	_, err = p.With("nope", "x")
	assert.ErrorIs(t, err, ErrUnknownConfigKey)
}

func TestDefault_BuiltOnce(t *testing.T) {
	first := Default(mapFinder{DefaultFileName: "dbfixture.username=first\n"})
	second := Default(mapFinder{DefaultFileName: "dbfixture.username=second\n"})
	assert.Same(t, first, second)
}
