package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := `
storage:
  dir: ` + filepath.Join(dir, "data") + `
fetchers:
  yahoo: {enabled: false}
  data912: {enabled: false}
  dolarapi: {enabled: false}
  bancopiano: {enabled: false}
  dummy: {enabled: true}
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := run(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "lock_minutes: 15")

	_, err = run(t, "config", "init", "-o", path)
	require.ErrorContains(t, err, "--force")
	_, err = run(t, "config", "init", "-o", path, "--force")
	require.NoError(t, err)
}

func TestPriceAndRefresh(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "price", "aapl", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL [none]")

	out, err = run(t, "refresh", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tickers=1 fresh=1")
}

func TestPrice_BadType(t *testing.T) {
	_, err := run(t, "price", "AAPL", "--type", "futuros", "--config", writeConfig(t))
	require.ErrorContains(t, err, "bad --type")
}

func TestSources(t *testing.T) {
	out, err := run(t, "sources", "GGAL", "-t", "acciones", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "dummy")

	_, err = run(t, "sources", "USD", "-t", "monedas", "--config", writeConfig(t))
	require.ErrorContains(t, err, "no source supports type monedas")
}

func TestInitDBAndBackfill(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "init-db", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "live=sqlite history=sqlite")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "data", "history.db"))

	out, err = run(t, "backfill", "AAPL", "--from", "2024-01-01", "--to", "2024-01-31", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: dummy: history not supported")
	assert.Contains(t, out, "no history available")

	_, err = run(t, "history", "AAPL", "--from", "2024-01-01", "--to", "2024-01-31", "--config", cfg)
	require.ErrorContains(t, err, "no history stored")

	_, err = run(t, "history", "AAPL", "--config", cfg)
	require.ErrorContains(t, err, "missing --from")
}
