package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iansmith/fat32kit/internal/shell"
)

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "Print a file's contents from a FAT32 image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			volume, err := openVolume(args[0])
			if err != nil {
				return err
			}

			sh := shell.New(volume, nil)
			content, err := sh.Cat(args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
}
