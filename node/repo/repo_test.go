package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/filecoin-project/dealbot/node/config"
	"github.com/stretchr/testify/require"
)

func TestInitAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dealbot")
	r, err := New(dir)
	require.NoError(t, err)

	_, err = r.Config()
	require.True(t, errors.Is(err, ErrNoRepo))

	cfg := config.DefaultDealbot()
	cfg.Wallet.Address = "0x00000000000000000000000000000000000000aa"
	cfg.Dealmaking.GroupSize = 5
	require.NoError(t, r.Init(cfg))

	err = r.Init(config.DefaultDealbot())
	require.True(t, errors.Is(err, ErrRepoExists))

	bz, err := os.ReadFile(r.ConfigPath())
	require.NoError(t, err)
	require.Contains(t, string(bz), "ConfigVersion = 1")
	require.Contains(t, string(bz), "# env var: DEALBOT_WALLET_ADDRESS")

	loaded, err := r.Config()
	require.NoError(t, err)
	require.Equal(t, 5, loaded.Dealmaking.GroupSize)
	require.Equal(t, cfg.Wallet.Address, loaded.Wallet.Address)
	require.Equal(t, filepath.Join(dir, "dealbot.db"), r.DBPath(loaded))

	loaded.Database.Path = "/var/lib/dealbot.db"
	require.Equal(t, "/var/lib/dealbot.db", r.DBPath(loaded))
}

func TestInvalidConfig(t *testing.T) {
	r, err := New(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultDealbot()
	cfg.Dealmaking.GroupSize = 0
	require.NoError(t, r.Init(cfg))

	_, err = r.Config()
	require.ErrorContains(t, err, "GroupSize")
}
