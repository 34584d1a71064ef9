package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, uint64(0xffffffc000000000), cfg.WorkThresholds[0])
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledgerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/ledgerd
genesis_account: "0000000000000000000000000000000000000000000000000000000000000001"
work_thresholds:
  0: 18446743798831144960
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/ledgerd", cfg.DataDir)
	require.NoError(t, cfg.Validate())

	acct, err := cfg.ParsedGenesisAccount()
	require.NoError(t, err)
	require.False(t, acct.IsZero())
}

func TestValidateRejectsMissingGenesis(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
}

func TestEnvOverridesAppliedAfterYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledgerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /from/yaml\n"), 0o600))

	t.Setenv("LEDGERD_DATA_DIR", "/from/env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/from/env", cfg.DataDir)
}
