package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iansmith/fat32kit/internal/fatfuse"
)

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount a FAT32 image read-only via FUSE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			volume, err := openVolume(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				cancel()
			}()

			mfs, err := fatfuse.Mount(ctx, volume, args[1], logrus.StandardLogger())
			if err != nil {
				return err
			}
			logrus.WithField("mountpoint", args[1]).Info("mounted FAT32 image")
			return mfs.Join(ctx)
		},
	}
}
