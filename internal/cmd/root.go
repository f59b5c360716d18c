// Package cmd wires fatshell's cobra command tree. Grounded on
// dsmmcken-dh-cli/go_src/internal/cmd's root-command-plus-add*Commands
// shape, with a persistent --config flag replacing that tool's TUI-
// oriented global flags since fatshell has no interactive chrome of
// its own outside the `shell` subcommand.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iansmith/fat32kit/internal/config"
	"github.com/iansmith/fat32kit/internal/diskimage"
	"github.com/iansmith/fat32kit/internal/fat32"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var configPath string

// NewRootCmd assembles the fatshell command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fatshell",
		Short:         "Read-only FAT32 volume inspector",
		Long:          "fatshell — browse, cat, and mount read-only FAT32 disk images.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "fatshell.toml", "path to fatshell.toml")

	root.AddCommand(newLsCmd(), newCatCmd(), newShellCmd(), newMountCmd())
	return root
}

// loadConfig reads configPath, falling back to spec.md §6 defaults when
// it is absent, and configures logrus accordingly.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	return cfg, nil
}

// openVolume reads imagePath fully into memory and opens it as a
// fat32.Volume. fatshell only ever deals with images small enough to
// fit in memory at once, matching original_source/src/file_system.rs's
// Fat32FileSystem holding disk: Box<[u8]>.
func openVolume(imagePath string) (*fat32.Volume, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading disk image %q: %w", imagePath, err)
	}
	return fat32.NewVolume(diskimage.New(data))
}
