package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domino14/salvo/automatic"
	"github.com/domino14/salvo/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(config.DefaultConfig())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestTrialsPipeline(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	small := []string{"--dim", "6", "--ships", "2,3", "--termination", "fixed-count:50"}

	run(t, "seeds", "seeds.txt", "--count", "3")
	seeds, err := automatic.LoadSeeds("seeds.txt")
	require.NoError(t, err)
	require.Len(t, seeds, 3)

	out := run(t, append([]string{"trials", "--games", "0", "--seeds", "seeds.txt",
		"--log", "trials.csv", "--db", "trials.db", "--summary", "summary.yaml"}, small...)...)
	assert.Contains(t, out, "Games played: 3")

	bts, err := os.ReadFile(filepath.Join(dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(bts), "games: 3")

	out = run(t, "analyze", "trials.csv")
	assert.Contains(t, out, "Games played: 3")

	out = run(t, "runs", "trials.db")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2,3")
}

func TestAutoplay(t *testing.T) {
	t.Chdir(t.TempDir())
	out := run(t, "autoplay", "--dim", "5", "--ships", "2,2", "--termination", "fixed-count:40",
		"--watch", "--history", "history.yaml", "--sample-log", "samples.yaml")
	assert.Contains(t, out, "Sunk the fleet in")
	assert.Contains(t, out, "hottest:")
	assert.Contains(t, out, ", 1 threads")

	bts, err := os.ReadFile("history.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(bts), "dim: 5")
	info, err := os.Stat("samples.yaml")
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
