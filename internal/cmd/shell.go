package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iansmith/fat32kit/internal/shell"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <image>",
		Short: "Open an interactive ls/cd/cat session against a FAT32 image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			volume, err := openVolume(args[0])
			if err != nil {
				return err
			}

			sh := shell.New(volume, nil)
			return runShellLoop(cmd, sh)
		},
	}
}

// runShellLoop reads one command per line from cmd's stdin until it is
// exhausted or "exit"/"quit" is entered. Ported from
// original_source/src/file_system/interface.rs's ShellSession usage,
// generalized from its test-only REPL driver into a real one.
func runShellLoop(cmd *cobra.Command, sh *shell.Shell) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(out, "fatshell> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb, rest := fields[0], fields[1:]

		switch verb {
		case "exit", "quit":
			return nil
		case "ls":
			path := ""
			if len(rest) > 0 {
				path = rest[0]
			}
			lines, err := sh.Ls(path)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
		case "cd":
			if len(rest) != 1 {
				fmt.Fprintln(out, "usage: cd <path>")
				continue
			}
			if err := sh.Cd(rest[0]); err != nil {
				fmt.Fprintln(out, err)
			}
		case "cat":
			if len(rest) != 1 {
				fmt.Fprintln(out, "usage: cat <path>")
				continue
			}
			content, err := sh.Cat(rest[0])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			fmt.Fprint(out, content)
		default:
			fmt.Fprintf(out, "unknown command %q\n", verb)
		}
	}
}
