package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Environment variables named DEALBOT_<SECTION>_<KEY> override values read
// from the config file
const envPrefix = "DEALBOT"

// FromFile reads the config at path on top of def. A missing file leaves
// the defaults in place.
func FromFile(path string, def *Dealbot) (*Dealbot, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	return FromReader(f, def)
}

// FromReader decodes TOML from r on top of def, then applies environment
// overrides
func FromReader(r io.Reader, def *Dealbot) (*Dealbot, error) {
	if err := decode(r, def); err != nil {
		return nil, err
	}
	return def, nil
}

func decode(r io.Reader, into interface{}) error {
	if _, err := toml.NewDecoder(r).Decode(into); err != nil {
		return err
	}
	if err := envconfig.Process(envPrefix, into); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}
	return nil
}

// fileVersion returns the ConfigVersion recorded in the file at path
func fileVersion(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck

	var v struct {
		ConfigVersion int
	}
	if _, err := toml.NewDecoder(f).Decode(&v); err != nil {
		return 0, err
	}
	return v.ConfigVersion, nil
}
