package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-db/strata/block"
)

var createBlockSize uint32

func init() {
	cmd := newCreateCmd()
	cmd.Flags().Uint32Var(&createBlockSize, "block-size", 0,
		"Block size in bytes (power of two >= 512, default 4096)")
	rootCmd.AddCommand(cmd)
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <store>",
		Short: "Create a new store file",
		Long: `The create command initializes a new strata store file with a fresh
superblock and an initial region of free blocks.

Example:
  stratactl create data.strata
  stratactl create data.strata --block-size 8192`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

func runCreate(args []string) error {
	path := args[0]
	printVerbose("Creating store: %s\n", path)

	mgr, err := block.CreateManager(path, block.StoreOptions{BlockSize: createBlockSize})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer mgr.Close()

	if err := mgr.Sync(context.Background()); err != nil {
		return fmt.Errorf("failed to sync store: %w", err)
	}

	s := mgr.Store()
	printInfo("Created %s: %d blocks of %d bytes\n", path, s.Count(), s.BlockSize())
	return nil
}
