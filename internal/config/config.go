// Package config loads radasm.toml, the optional per-project defaults file.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the default config file looked up next to the input file.
const FileName = "radasm.toml"

// Config mirrors the radasm.toml schema. Flags given on the command line
// override anything loaded from here.
type Config struct {
	Format      string            `toml:"format"`
	Device      string            `toml:"device"`
	Is64Bit     bool              `toml:"bits64"`
	NoWarnings  bool              `toml:"no-warnings"`
	IncludeDirs []string          `toml:"include-dirs"`
	DefSyms     map[string]uint64 `toml:"defsyms"`
}

// Load reads the config file at path. A missing file is not an error: the
// zero Config is returned.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if undec := meta.Undecoded(); len(undec) != 0 {
		// Unknown keys are tolerated; they may belong to a newer version.
		_ = undec
	}
	return cfg, nil
}

// LoadNear looks for the config file in the directory of the given input.
func LoadNear(inputPath string) (Config, error) {
	dir := filepath.Dir(inputPath)
	return Load(filepath.Join(dir, FileName))
}
