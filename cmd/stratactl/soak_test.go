package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with the given args.
func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func TestCreateInfoVerify(t *testing.T) {
	quiet = true
	defer func() { quiet = false }()

	path := filepath.Join(t.TempDir(), "cli.strata")
	require.NoError(t, runCommand(t, "create", path))
	require.NoError(t, runCommand(t, "info", path))
	require.NoError(t, runCommand(t, "verify", path))
}

func TestSoakSmoke(t *testing.T) {
	quiet = true
	defer func() { quiet = false }()

	path := filepath.Join(t.TempDir(), "soak.strata")
	require.NoError(t, runCommand(t,
		"soak", path,
		"--pages", "3",
		"--passes", "4",
		"--keys", "6",
		"--value-max", "2000",
		"--overflow-threshold", "512",
	))

	// The soaked store must still verify clean.
	require.NoError(t, runCommand(t, "verify", path))
}

func TestInfoMissingStore(t *testing.T) {
	quiet = true
	defer func() { quiet = false }()

	err := runCommand(t, "info", filepath.Join(t.TempDir(), "missing.strata"))
	require.Error(t, err)
}
