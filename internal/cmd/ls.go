package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iansmith/fat32kit/internal/shell"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "List a directory in a FAT32 image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			volume, err := openVolume(args[0])
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 2 {
				path = args[1]
			}

			sh := shell.New(volume, nil)
			lines, err := sh.Ls(path)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
