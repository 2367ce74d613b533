// Package config resolves opsreg configuration. The partition database
// location follows a strict chain: explicit flag, then environment,
// then the stage var file. An unresolvable location is a configuration
// error surfaced with a descriptive message, never silently defaulted.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"opsreg/internal/logging"

	"gopkg.in/yaml.v3"
)

// EnvDBPath is the environment variable naming the partition database.
const EnvDBPath = "OPSREG_DB"

// ErrDBPathUnresolved is returned when no source yields a database path.
var ErrDBPathUnresolved = errors.New(
	"OPSREG_DB could not be resolved; add it to your var/<stage>-var.yml file, " +
		"set it as an environment variable, or pass it with --db")

// varFile mirrors the subset of the stage var file opsreg reads.
type varFile struct {
	DBPath string `yaml:"OPSREG_DB"`
}

// ResolveDBPath resolves the partition database location.
// Precedence: the explicit value (--db flag), the OPSREG_DB environment
// variable, then var/<stage>-var.yml searched in the working directory
// and one directory up.
func ResolveDBPath(stage, explicit string) (string, error) {
	if explicit != "" {
		logging.BootDebug("DB path from flag: %s", explicit)
		return explicit, nil
	}

	if env := os.Getenv(EnvDBPath); env != "" {
		logging.BootDebug("DB path from environment: %s", env)
		return env, nil
	}

	if stage != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		if path, ok := dbPathFromVarFile(stage, cwd); ok {
			return path, nil
		}
	}

	return "", ErrDBPathUnresolved
}

// dbPathFromVarFile searches dir and its parent for var/<stage>-var.yml.
func dbPathFromVarFile(stage, dir string) (string, bool) {
	name := fmt.Sprintf("%s-var.yml", stage)

	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, "var", name)
		data, err := os.ReadFile(path)
		if err == nil {
			var vf varFile
			if err := yaml.Unmarshal(data, &vf); err != nil {
				logging.Get(logging.CategoryBoot).Warn("Failed to parse var file %s: %v", path, err)
				return "", false
			}
			if vf.DBPath == "" {
				return "", false
			}
			logging.BootDebug("DB path from var file %s: %s", path, vf.DBPath)
			return vf.DBPath, true
		}
		dir = filepath.Dir(dir)
	}

	return "", false
}
