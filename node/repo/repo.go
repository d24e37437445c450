package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/filecoin-project/dealbot/node/config"
	"github.com/mitchellh/go-homedir"
)

const configFilename = "config.toml"

var ErrRepoExists = errors.New("repo exists")
var ErrNoRepo = errors.New("repo not initialized, run `dealbot init`")

// Repo is the dealbot's directory: it holds the config file and, by
// default, the sqlite database
type Repo struct {
	path string
}

// New expands the home dir in path and returns the repo at that path. The
// repo directory does not need to exist yet.
func New(path string) (*Repo, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding repo path %s: %w", path, err)
	}
	return &Repo{path: p}, nil
}

func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) ConfigPath() string {
	return filepath.Join(r.path, configFilename)
}

// Exists returns true if the repo has a config file
func (r *Repo) Exists() (bool, error) {
	_, err := os.Stat(r.ConfigPath())
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// Init creates the repo directory and writes a commented config file
func (r *Repo) Init(cfg *config.Dealbot) error {
	exists, err := r.Exists()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", r.path, ErrRepoExists)
	}

	if err := os.MkdirAll(r.path, 0755); err != nil {
		return fmt.Errorf("creating repo directory %s: %w", r.path, err)
	}

	cfg.ConfigVersion = config.CurrentVersion
	bz, err := config.ConfigUpdate(cfg, config.DefaultDealbot(), true, false)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	if err := os.WriteFile(r.ConfigPath(), bz, 0644); err != nil {
		return fmt.Errorf("writing config file %s: %w", r.ConfigPath(), err)
	}
	return nil
}

// Config migrates the config file to the current version if needed, then
// loads it over the defaults
func (r *Repo) Config() (*config.Dealbot, error) {
	exists, err := r.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", r.path, ErrNoRepo)
	}

	if err := config.ConfigMigrate(r.path); err != nil {
		return nil, fmt.Errorf("migrating config: %w", err)
	}

	cfg, err := config.FromFile(r.ConfigPath(), config.DefaultDealbot())
	if err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", r.ConfigPath(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DBPath is the path of the sqlite database. Relative paths in the config
// are resolved against the repo directory.
func (r *Repo) DBPath(cfg *config.Dealbot) string {
	if filepath.IsAbs(cfg.Database.Path) {
		return cfg.Database.Path
	}
	return filepath.Join(r.path, cfg.Database.Path)
}
