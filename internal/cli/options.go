package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	optionsOutput string
	actionVerb    string
)

var optionsCmd = &cobra.Command{
	Use:   "options PATH...",
	Short: "List the context menu entries for paths",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOptions,
}

var actionCmd = &cobra.Command{
	Use:     "action --verb VERB PATH...",
	Short:   "Run a context menu entry on paths",
	Example: "  dbxlink action --verb copypublic ~/Dropbox/Public/photo.jpg",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAction,
}

type contextOption struct {
	Title   string `yaml:"title" json:"title"`
	Tooltip string `yaml:"tooltip" json:"tooltip"`
	Verb    string `yaml:"verb" json:"verb"`
}

func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		path, _, err := resolvePath(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func runOptions(cmd *cobra.Command, args []string) error {
	if err := checkFormat(optionsOutput); err != nil {
		return err
	}
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := s.overlay.ContextOptions(cmd.Context(), paths)
	if err != nil {
		return fmt.Errorf("context options: %w", err)
	}
	rows := make([]contextOption, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, contextOption{Title: o.Title, Tooltip: o.Tooltip, Verb: o.Verb})
	}

	out := cmd.OutOrStdout()
	if optionsOutput != formatTable {
		return encode(out, optionsOutput, rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "📦 No context menu entries")
		return err
	}
	tw := table(out, "VERB", "TITLE", "TOOLTIP")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Verb, r.Title, r.Tooltip)
	}
	return tw.Flush()
}

func runAction(cmd *cobra.Command, args []string) error {
	if actionVerb == "" {
		return errors.New("--verb is required")
	}
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.overlay.ContextAction(cmd.Context(), paths, actionVerb); err != nil {
		return fmt.Errorf("action %s: %w", actionVerb, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "📦 Ran %s on %d path(s)\n", actionVerb, len(paths))
	return err
}

func init() {
	addOutputFlag(optionsCmd, &optionsOutput)
	actionCmd.Flags().StringVar(&actionVerb, "verb", "", "context menu verb to run")
	rootCmd.AddCommand(optionsCmd, actionCmd)
}
