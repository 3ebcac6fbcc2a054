package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var emblemsOutput string

var emblemPathsCmd = &cobra.Command{
	Use:   "emblem-paths",
	Short: "List the directories holding emblem icons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(emblemsOutput); err != nil {
			return err
		}
		s, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		dirs, err := s.overlay.EmblemPaths(cmd.Context())
		if err != nil {
			return fmt.Errorf("emblem paths: %w", err)
		}
		return printList(cmd, emblemsOutput, dirs)
	},
}

var folderTagCmd = &cobra.Command{
	Use:   "folder-tag PATH",
	Short: "Show the folder tag of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _, err := resolvePath(args[0])
		if err != nil {
			return err
		}
		s, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		tag, err := s.overlay.FolderTag(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("folder tag %s: %w", path, err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), orDash(tag))
		return err
	},
}

var emblemsCmd = &cobra.Command{
	Use:   "emblems PATH",
	Short: "Show the extra emblems the daemon sets on a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(emblemsOutput); err != nil {
			return err
		}
		path, _, err := resolvePath(args[0])
		if err != nil {
			return err
		}
		s, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		emblems, err := s.overlay.DaemonEmblems(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("emblems %s: %w", path, err)
		}
		return printList(cmd, emblemsOutput, emblems)
	},
}

// printList writes one value per line, or a YAML/JSON list.
func printList(cmd *cobra.Command, format string, items []string) error {
	out := cmd.OutOrStdout()
	if format != formatTable {
		if items == nil {
			items = []string{}
		}
		return encode(out, format, items)
	}
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, err := fmt.Fprintln(out, item); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	addOutputFlag(emblemPathsCmd, &emblemsOutput)
	addOutputFlag(emblemsCmd, &emblemsOutput)
	rootCmd.AddCommand(emblemPathsCmd, folderTagCmd, emblemsCmd)
}
