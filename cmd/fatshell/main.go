// Command fatshell is a read-only FAT32 inspector: ls/cat/shell/mount
// over a disk image file.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iansmith/fat32kit/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("fatshell failed")
		os.Exit(1)
	}
}
