package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
bot:
  token: "123:abc"
redis:
  addr: "localhost:6379"
database:
  host: "localhost"
  user: "himera"
  name: "himera"
market:
  base_url: "https://api.example.com"
  rpc_url: "https://rpc.example.com"
executor:
  url: "https://executor.example.com"
orders:
  dca_interval: 2m
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(testConfig), 0o600))
	t.Setenv("APP_ENV", "test")
	return dir
}

func TestLoadAppliesFlagOverrides(t *testing.T) {
	dir := writeConfig(t)

	rt := &runtime{}
	cmd := rt.newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config-dir", dir,
		"--limit-interval", "5s",
		"--log-level", "debug",
	}))
	require.NoError(t, rt.load(cmd))

	assert.Equal(t, "test", rt.cfg.AppEnv)
	assert.Equal(t, 5*time.Second, rt.cfg.Orders.LimitInterval)
	assert.Equal(t, 2*time.Minute, rt.cfg.Orders.DCAInterval)
	assert.Equal(t, "debug", rt.cfg.Logger.Level)
	assert.Equal(t, "polling", rt.cfg.Bot.Mode)
	require.NotNil(t, rt.log)
	assert.Equal(t, "DEBUG", rt.level.Level().String())
}

func TestRunFailsWithoutConfig(t *testing.T) {
	t.Setenv("APP_ENV", "missing")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"migrate", "--config-dir", t.TempDir()}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "load configuration")
}

func TestCommandTree(t *testing.T) {
	root := (&runtime{}).newRootCommand()

	for _, path := range [][]string{{"serve"}, {"migrate"}, {"wallet", "add"}, {"wallet", "list"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	for _, name := range []string{"config-dir", "limit-interval", "dca-interval", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestWalletFlagsRecord(t *testing.T) {
	rec, err := walletFlags{name: "main", buySlippage: "2.5"}.record("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "main", rec.Name)
	assert.True(t, rec.BuySlippage.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, rec.SellSlippage.IsZero())

	_, err = walletFlags{sellSlippage: "150"}.record("0x1111111111111111111111111111111111111111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sell-slippage")

	_, err = walletFlags{buySlippage: "abc"}.record("0x1111111111111111111111111111111111111111")
	assert.Error(t, err)
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "-1", "0", "abc"} {
		_, err := parseUserID(raw)
		assert.Error(t, err, raw)
	}
}
