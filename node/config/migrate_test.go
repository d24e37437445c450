package config

import (
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const mockV0Config = `
[Wallet]
  Address = "0x00000000000000000000000000000000000000aa"

[Dealmaking]
  GroupSize = 4
`

const mockV2Config = `
ConfigVersion = 2
MyNewKey = "Hello"
`

const testConfig = `
ConfigVersion = 1

[Wallet]
  Address = "0x00000000000000000000000000000000000000aa"

[Dealmaking]
  GroupSize = 10
  EnableCDN = true
  EnableIpni = true

[Dataset]
  URLs = ["https://data.example.com/a.bin"]
  FetchTimeout = "30s"

[IpniVerification]
  IndexerURL = "https://indexer.example.com"
  MaxAttempts = 3

[[Providers]]
  Address = "0x0000000000000000000000000000000000000001"
  Name = "sp1"
  ServiceURL = "https://sp1.example.com"

[[Providers]]
  Address = "0x0000000000000000000000000000000000000002"
  Name = "sp2"
  ServiceURL = "https://sp2.example.com"
`

func TestMigrate(t *testing.T) {
	// Add a new mock migration so as to be able to test migrating up and down
	mockv1Tov2 := func(string) ([]byte, error) {
		return []byte(mockV2Config), nil
	}
	migrations = []migration{
		v0Tov1,
		mockv1Tov2,
	}
	t.Cleanup(func() {
		migrations = []migration{v0Tov1}
	})

	repoDir := t.TempDir()
	err := os.WriteFile(path.Join(repoDir, "config.toml"), []byte(mockV0Config), 0644)
	require.NoError(t, err)

	// Migrate up to v1
	err = migrateTo(repoDir, 1)
	require.NoError(t, err)

	// The existing config file should have been copied to config/config.toml.0
	v0File := path.Join(repoDir, "config", "config.toml.0")
	bz, err := os.ReadFile(v0File)
	require.NoError(t, err)
	require.Equal(t, mockV0Config, string(bz))

	// The new config file should have been written to config/config.toml.1
	v1File := path.Join(repoDir, "config", "config.toml.1")
	bz, err = os.ReadFile(v1File)
	v1FileContents := string(bz)
	require.NoError(t, err)

	// There should be a symlink from config.toml to config/config.toml.1
	symLink := path.Join(repoDir, "config.toml")
	bz, err = os.ReadFile(symLink)
	require.NoError(t, err)
	require.Equal(t, v1FileContents, string(bz))

	// The config file should have the new version
	require.Contains(t, v1FileContents, `ConfigVersion = 1`)

	// The v1 config file should retain key / values that were changed from the defaults
	// in the original config file
	require.Contains(t, v1FileContents, `Address = "0x00000000000000000000000000000000000000aa"`)
	require.Contains(t, v1FileContents, `GroupSize = 4`)
	require.NotContains(t, v1FileContents, `#GroupSize = 4`)

	// Defaults should be commented out
	require.Contains(t, v1FileContents, `#EnableIpni = true`)

	// The config file should have comments
	require.Contains(t, v1FileContents, `The number of providers that deals are made with concurrently`)
	require.Contains(t, v1FileContents, `# env var: DEALBOT_DEALMAKING_GROUPSIZE`)

	// Migrate to v1 should have no effect (because config file is already at v1)
	err = migrateTo(repoDir, 1)
	require.NoError(t, err)

	// Migrate up to v2 should apply v2 migration function
	err = migrateTo(repoDir, 2)
	require.NoError(t, err)

	bz, err = os.ReadFile(symLink)
	require.NoError(t, err)
	require.Equal(t, mockV2Config, string(bz))

	// Migrate down to v1 should restore v1 config
	err = migrateTo(repoDir, 1)
	require.NoError(t, err)

	bz, err = os.ReadFile(symLink)
	require.NoError(t, err)
	require.Equal(t, v1FileContents, string(bz))

	// Migrate down to v0 should have no effect (because the v0 and v1 config files are compatible)
	err = migrateTo(repoDir, 0)
	require.NoError(t, err)

	bz, err = os.ReadFile(symLink)
	require.NoError(t, err)
	require.Equal(t, v1FileContents, string(bz))
}

func TestFromReader(t *testing.T) {
	dealbotCfg, err := FromReader(strings.NewReader(testConfig), DefaultDealbot())
	require.NoError(t, err)

	require.NoError(t, dealbotCfg.Validate())
	require.True(t, dealbotCfg.Dealmaking.EnableCDN)
	require.Equal(t, []string{"https://data.example.com/a.bin"}, dealbotCfg.Dataset.URLs)
	require.Equal(t, 30*time.Second, time.Duration(dealbotCfg.Dataset.FetchTimeout))
	require.Equal(t, 3, dealbotCfg.IpniVerification.MaxAttempts)
	// values not in the file keep their defaults
	require.Equal(t, 5*time.Second, time.Duration(dealbotCfg.IpniVerification.LookupTimeout))
	require.Len(t, dealbotCfg.Providers, 2)
	require.Equal(t, "sp2", dealbotCfg.Providers[1].Name)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DEALBOT_DEALMAKING_GROUPSIZE", "3")
	t.Setenv("DEALBOT_IPNIVERIFICATION_SETTLEDELAY", "1m")

	dealbotCfg, err := FromReader(strings.NewReader(testConfig), DefaultDealbot())
	require.NoError(t, err)

	require.Equal(t, 3, dealbotCfg.Dealmaking.GroupSize)
	require.Equal(t, time.Minute, time.Duration(dealbotCfg.IpniVerification.SettleDelay))
}

func TestFromFileMissing(t *testing.T) {
	def := DefaultDealbot()
	cfg, err := FromFile(path.Join(t.TempDir(), "config.toml"), def)
	require.NoError(t, err)
	require.Equal(t, def, cfg)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultDealbot().Validate())

	cfg := DefaultDealbot()
	cfg.Dealmaking.GroupSize = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultDealbot()
	cfg.Dataset.MaxSize = cfg.Dataset.MinSize - 1
	require.Error(t, cfg.Validate())

	cfg = DefaultDealbot()
	cfg.IpniVerification.IndexerURL = ""
	require.Error(t, cfg.Validate())
	cfg.Dealmaking.EnableIpni = false
	require.NoError(t, cfg.Validate())

	cfg = DefaultDealbot()
	cfg.Providers = []ProviderConfig{{Address: "0x0000000000000000000000000000000000000001"}}
	require.Error(t, cfg.Validate())
	cfg.Providers[0].ServiceURL = "https://sp1.example.com"
	require.NoError(t, cfg.Validate())
	cfg.Providers[0].Address = "0x01"
	require.Error(t, cfg.Validate())

	cfg = DefaultDealbot()
	cfg.Wallet.Address = "f1wallet"
	require.Error(t, cfg.Validate())

	cfg = DefaultDealbot()
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "dealbot", cfg.Tracing.ServiceName)
	cfg.Tracing.SampleRatio = 1.5
	require.Error(t, cfg.Validate())
}

func TestConfigDiff(t *testing.T) {
	repoDir := t.TempDir()
	err := os.WriteFile(path.Join(repoDir, "config.toml"), []byte(testConfig), 0644)
	require.NoError(t, err)

	cgf, err := FromFile(path.Join(repoDir, "config.toml"), DefaultDealbot())
	require.NoError(t, err)

	s, err := ConfigUpdate(cgf, DefaultDealbot(), false, true)
	require.NoError(t, err)

	require.Contains(t, string(s), `EnableCDN = true`)
	require.NotContains(t, string(s), `EnableIpni`)
	require.NotContains(t, string(s), `The URL of the IPNI indexer`)

	s, err = ConfigUpdate(cgf, DefaultDealbot(), true, true)
	require.NoError(t, err)

	require.Contains(t, string(s), `The URL of the IPNI indexer`)
	require.Contains(t, string(s), `The base URL of the provider's PDP service`)
}
