package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every process-wide setting read from the environment.
const EnvPrefix = "DBFIXTURE"

// Settings are process-wide, read-only inputs set by the surrounding
// environment.
type Settings struct {
	// DumpDataSet logs every loaded fixture document as XML.
	DumpDataSet bool

	// LockDiagnostics asks the database for a lock report when a fixture
	// operation fails on a lock error.
	LockDiagnostics bool

	// SearchPath lists the directories forming the unscoped resource
	// search path, in order.
	SearchPath []string
}

// LoadSettings reads DBFIXTURE_DUMP_DATASET, DBFIXTURE_LOCK_DIAGNOSTICS and
// DBFIXTURE_PATH from the environment.
func LoadSettings() Settings {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("dump_dataset", false)
	v.SetDefault("lock_diagnostics", false)
	v.SetDefault("path", "")

	return Settings{
		DumpDataSet:     v.GetBool("dump_dataset"),
		LockDiagnostics: v.GetBool("lock_diagnostics"),
		SearchPath:      splitPath(v.GetString("path")),
	}
}

func splitPath(list string) []string {
	if list == "" {
		return nil
	}
	var dirs []string
	for _, dir := range filepath.SplitList(list) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
