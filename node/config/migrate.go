package config

import (
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("cfg")

// CurrentVersion is the config file version this build reads
const CurrentVersion = 1

// A migration renders the config file at cfgPath in the format of the next
// version
type migration func(cfgPath string) ([]byte, error)

// migrations[n] upgrades a version n file to version n+1
var migrations = []migration{
	v0Tov1,
}

// ConfigMigrate brings the config file in the repo to CurrentVersion.
// Every version of the file is kept under <repo>/config/config.toml.<n>,
// and config.toml is a symlink to the active one.
func ConfigMigrate(repoPath string) error {
	return migrateTo(repoPath, CurrentVersion)
}

func migrateTo(repoPath string, target int) error {
	h := history{repoPath: repoPath}

	current, err := fileVersion(h.active())
	if err != nil {
		return fmt.Errorf("reading version of %s: %w", h.active(), err)
	}
	if current == target {
		return nil
	}

	if err := os.MkdirAll(h.dir(), 0775); err != nil {
		return fmt.Errorf("creating config history directory: %w", err)
	}

	if current < target {
		for v := current; v < target; v++ {
			if err := h.upgrade(v); err != nil {
				return fmt.Errorf("migrating config from v%d to v%d: %w", v, v+1, err)
			}
		}
		return nil
	}
	return h.rollback(current, target)
}

type history struct {
	repoPath string
}

func (h history) active() string {
	return filepath.Join(h.repoPath, "config.toml")
}

func (h history) dir() string {
	return filepath.Join(h.repoPath, "config")
}

func (h history) versionFile(v int) string {
	return fmt.Sprintf("config.toml.%d", v)
}

// upgrade archives the active version v file, then writes and activates
// version v+1
func (h history) upgrade(v int) error {
	if v >= len(migrations) {
		return fmt.Errorf("no migration from v%d", v)
	}
	log.Infow("migrating config", "from", v, "to", v+1)

	old, err := os.ReadFile(h.active())
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(h.dir(), h.versionFile(v)), old, 0644); err != nil {
		return err
	}

	next, err := migrations[v](h.active())
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(h.dir(), h.versionFile(v+1)), next, 0644); err != nil {
		return err
	}
	return h.activate(v + 1)
}

// rollback points the active config at an archived older version. Version 0
// files are read the same way as version 1 files, so rolling back to 0 is a
// no-op.
func (h history) rollback(from int, to int) error {
	if to == 0 {
		return nil
	}
	log.Infow("rolling config back", "from", from, "to", to)

	if _, err := os.Stat(filepath.Join(h.dir(), h.versionFile(to))); err != nil {
		return fmt.Errorf("no archived config for v%d: %w", to, err)
	}
	return h.activate(to)
}

func (h history) activate(v int) error {
	if err := os.Remove(h.active()); err != nil {
		return fmt.Errorf("removing %s: %w", h.active(), err)
	}
	// relative, so the repo can be moved
	target := filepath.Join("config", h.versionFile(v))
	if err := os.Symlink(target, h.active()); err != nil {
		return fmt.Errorf("linking %s to %s: %w", h.active(), target, err)
	}
	return nil
}
