// Package shell provides an interactive, read-only navigation façade
// over a fat32.Volume: ls, cd, and cat. Ported from
// original_source/src/file_system/interface.rs's ShellSession.
package shell

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iansmith/fat32kit/internal/fat32"
)

// Shell tracks one session's working directory against a shared,
// immutable Volume. The zero value is not ready for use; call New.
type Shell struct {
	Volume         *fat32.Volume
	CurrentCluster uint32

	log *logrus.Entry
}

// New returns a Shell rooted at volume's root directory.
func New(volume *fat32.Volume, log *logrus.Logger) *Shell {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Shell{
		Volume:         volume,
		CurrentCluster: volume.RootCluster,
		log:            log.WithField("component", "shell"),
	}
}

// Entries lists the resolved directory at path (the current directory
// if path is empty), omitting the "." and ".." bookkeeping entries.
// Grounded on interface.rs's ls_entries.
func (s *Shell) Entries(path string) ([]fat32.FileInfo, error) {
	cluster := s.CurrentCluster
	if path != "" {
		info, err := s.Volume.ParsePath(path, s.CurrentCluster)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, errors.Wrapf(fat32.ErrEntryNotFound, "path=%q", path)
		}
		if !info.IsDirectory {
			return nil, errors.Wrapf(fat32.ErrNotADirectory, "path=%q", path)
		}
		cluster = info.StartCluster
	}

	all, err := fat32.ListDirectory(s.Volume, cluster)
	if err != nil {
		return nil, err
	}

	entries := make([]fat32.FileInfo, 0, len(all))
	for _, e := range all {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, e)
	}
	s.log.WithFields(logrus.Fields{"cluster": cluster, "count": len(entries)}).Debug("listed directory")
	return entries, nil
}

// Ls renders Entries as display lines, "[DIR] name" or "[FILE] name",
// matching interface.rs's ls.
func (s *Shell) Ls(path string) ([]string, error) {
	entries, err := s.Entries(path)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		tag := "[FILE]"
		if e.IsDirectory {
			tag = "[DIR]"
		}
		lines = append(lines, fmt.Sprintf("%s %s", tag, e.Name))
	}
	return lines, nil
}

// Cd resolves path against the current directory and, if it names a
// directory, moves the session there. Ported from interface.rs's cd.
func (s *Shell) Cd(path string) error {
	info, err := s.Volume.ParsePath(path, s.CurrentCluster)
	if err != nil {
		return err
	}
	if info == nil {
		return errors.Wrapf(fat32.ErrEntryNotFound, "path=%q", path)
	}
	if !info.IsDirectory {
		return errors.Wrapf(fat32.ErrNotADirectory, "path=%q", path)
	}
	s.CurrentCluster = info.StartCluster
	s.log.WithField("cluster", s.CurrentCluster).Debug("changed directory")
	return nil
}

// Cat returns the decoded contents of the file at path.
func (s *Shell) Cat(path string) (string, error) {
	content, err := s.Volume.ReadFile(path, s.CurrentCluster)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("cat failed")
		return "", err
	}
	return content, nil
}
