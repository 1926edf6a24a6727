package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/strata-db/strata/block"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <store>",
		Short: "Validate a store superblock and report basic metadata",
		Long: `The info command validates a strata store file's superblock and
displays basic metadata: block size, block count, and file size.

Example:
  stratactl info data.strata
  stratactl info data.strata --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
}

type storeInfo struct {
	File       string `json:"file"`
	FileSize   int64  `json:"file_size"`
	BlockSize  uint32 `json:"block_size"`
	Blocks     uint32 `json:"blocks"`
	DataBlocks uint32 `json:"data_blocks"`
	Usable     uint32 `json:"usable_per_block"`
}

func runInfo(args []string) error {
	path := args[0]
	printVerbose("Opening store: %s\n", path)

	mgr, err := block.OpenManager(path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer mgr.Close()

	s := mgr.Store()
	info := storeInfo{
		File:       path,
		BlockSize:  s.BlockSize(),
		Blocks:     s.Count(),
		DataBlocks: s.Count() - 1,
		Usable:     s.Usable(),
	}
	if stat, err := os.Stat(path); err == nil {
		info.FileSize = stat.Size()
	}

	if jsonOut {
		return printJSON(info)
	}

	p := message.NewPrinter(language.English)
	printInfo("\nStore Information:\n")
	printInfo("  File:            %s\n", info.File)
	printInfo("  Size:            %s bytes\n", p.Sprintf("%d", info.FileSize))
	printInfo("  Block size:      %s bytes\n", p.Sprintf("%d", info.BlockSize))
	printInfo("  Blocks:          %s (%s data)\n",
		p.Sprintf("%d", info.Blocks), p.Sprintf("%d", info.DataBlocks))
	printInfo("  Usable payload:  %s bytes/block\n", p.Sprintf("%d", info.Usable))
	return nil
}
