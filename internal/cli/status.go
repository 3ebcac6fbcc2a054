package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/dbxlink/internal/overlay"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status PATH...",
	Short: "Show the sync status of files",
	Long:  "Ask the daemon for the sync status, folder tag and emblems of each path.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

// fileStatus is one row of status output.
type fileStatus struct {
	Path      string   `yaml:"path" json:"path"`
	Status    string   `yaml:"status" json:"status"`
	FolderTag string   `yaml:"folder_tag,omitempty" json:"folder_tag,omitempty"`
	Emblems   []string `yaml:"emblems" json:"emblems"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkFormat(statusOutput); err != nil {
		return err
	}
	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	var rows []fileStatus
	for _, arg := range args {
		path, isDir, err := resolvePath(arg)
		if err != nil {
			return err
		}
		info, err := s.overlay.FileStatus(cmd.Context(), path, isDir)
		if err != nil {
			return fmt.Errorf("status %s: %w", path, err)
		}
		rows = append(rows, fileStatus{
			Path:      path,
			Status:    info.Status,
			FolderTag: info.FolderTag,
			Emblems:   overlay.Emblems(info),
		})
	}

	out := cmd.OutOrStdout()
	if statusOutput != formatTable {
		return encode(out, statusOutput, rows)
	}
	tw := table(out, "PATH", "STATUS", "TAG", "EMBLEMS")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Path, orDash(r.Status), orDash(r.FolderTag), orDash(strings.Join(r.Emblems, ",")))
	}
	return tw.Flush()
}

// resolvePath makes arg absolute and reports whether it is a directory. A
// path that does not exist locally is still sent, as a file.
func resolvePath(arg string) (string, bool, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", arg, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return path, false, nil
	}
	return path, fi.IsDir(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	addOutputFlag(statusCmd, &statusOutput)
	rootCmd.AddCommand(statusCmd)
}
