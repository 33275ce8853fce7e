package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-sieve/internal/testutil"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SIEVE_LOG_OUTPUT", "discard")
	t.Setenv("SIEVE_SIEVE_WORKERS", "2")

	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, teardown())
	return out.String(), err
}

func TestRoot_ListsPrimes(t *testing.T) {
	out, err := execute(t, "", "30")
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n", out)
}

func TestRoot_Count(t *testing.T) {
	out, err := execute(t, "", "--count", "100")
	require.NoError(t, err)
	assert.Equal(t, "25\n", out)
}

func TestRoot_ReadsStdin(t *testing.T) {
	out, err := execute(t, "1_000\n", "--count")
	require.NoError(t, err)
	assert.Equal(t, "168\n", out)
}

func TestRoot_SmallBounds(t *testing.T) {
	out, err := execute(t, "", "1")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, "", "2")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestRoot_InvalidBound(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"Letters", "", []string{"abc"}},
		{"Negative", "", []string{"--", "-5"}},
		{"Overflow", "", []string{"18446744073709551616"}},
		{"EmptyStdin", "", nil},
		{"BlankLine", "\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidBound(err), "got %v", err)
			assert.Equal(t, 2, exitCode(err))
		})
	}
}

func TestRoot_JSONOutput(t *testing.T) {
	out, err := execute(t, "", "-f", "json", "10")
	require.NoError(t, err)

	var doc model.SieveResult
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, uint64(4), doc.Count)
	assert.Equal(t, []uint64{2, 3, 5, 7}, doc.Primes)
	assert.Equal(t, 2, doc.Stats.Workers)
}

func TestRoot_SegmentedFlags(t *testing.T) {
	out, err := execute(t, "", "count", "100000", "--window", "1000", "-w", "3")
	require.NoError(t, err)
	assert.Equal(t, "9592\n", out)
}

func TestCount(t *testing.T) {
	out, err := execute(t, "", "count", "1000000")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", testutil.PrimeCounts[1_000_000]), out)
}

func TestConfigFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "sieve.yaml", "output:\n  format: json\n")
	out, err := execute(t, "", "--config", path, "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"primes":[2,3,5,7]`)

	_, err = execute(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "7")
	assert.NoError(t, err, "a missing file falls back to defaults")
}

func TestVerify(t *testing.T) {
	out, err := execute(t, "", "verify", "1", "1000", "--chunks", "4")
	require.NoError(t, err)
	assert.Equal(t, "OK: 168 primes in [1, 1000] agree across 4 chunks\n", out)

	_, err = execute(t, "", "verify", "10", "5")
	assert.True(t, apperrors.IsInvalidBound(err))
}

func TestHistory(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		_, err := execute(t, "", "history")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
		assert.Equal(t, 1, exitCode(err))
	})

	t.Run("Enabled", func(t *testing.T) {
		t.Setenv("SIEVE_DATABASE_ENABLED", "true")
		t.Setenv("SIEVE_DATABASE_PATH", filepath.Join(t.TempDir(), "history.db"))

		_, err := execute(t, "", "count", "100")
		require.NoError(t, err)
		_, err = execute(t, "", "verify", "1", "50")
		require.NoError(t, err)

		out, err := execute(t, "", "history")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "MODE")
		assert.Contains(t, lines[1], "verify")
		assert.Contains(t, lines[1], "ok")
		assert.Contains(t, lines[2], "count")
		assert.Contains(t, lines[2], "25")

		out, err = execute(t, "", "history", "--mode", "count")
		require.NoError(t, err)
		assert.NotContains(t, out, "verify")

		_, err = execute(t, "", "history", "--mode", "sideways")
		assert.Error(t, err)
	})
}

func TestPprofFlags(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "", "count", "1000", "--pprof", "--pprof-dir", dir, "--pprof-profiles", "heap,goroutine")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = execute(t, "", "count", "10", "--pprof", "--pprof-dir", dir, "--pprof-profiles", "bogus")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version dev")
	assert.Contains(t, out, "Go Version:")
}

func TestReadBound(t *testing.T) {
	var prompt bytes.Buffer
	n, err := readBound(strings.NewReader("  42  \nignored\n"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
	assert.Equal(t, "Enter an upper bound: ", prompt.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(apperrors.ErrInvalidBound))
	assert.Equal(t, 1, exitCode(apperrors.ErrConfigError))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
