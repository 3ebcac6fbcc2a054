package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/dbxlink/internal/wire"
)

var callOutput string

var callCmd = &cobra.Command{
	Use:   "call NAME [key=value...]",
	Short: "Send a raw command to the daemon",
	Long: "Send a command with the given arguments and print the response.\n" +
		"Repeating a key adds another value to it.",
	Example: "  dbxlink call icon_overlay_file_status path=/home/me/Dropbox/notes.txt",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	if err := checkFormat(callOutput); err != nil {
		return err
	}
	req, err := parseArgs(args[1:])
	if err != nil {
		return err
	}

	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.client.Call(cmd.Context(), args[0], req)
	if err != nil {
		return fmt.Errorf("call %s: %w", args[0], err)
	}
	return printArgs(cmd.OutOrStdout(), callOutput, res)
}

// parseArgs turns key=value pairs into an argument table.
func parseArgs(pairs []string) (*wire.Args, error) {
	args := wire.NewArgs()
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", p)
		}
		args.Add(k, v)
	}
	if args.Len() >= wire.MaxArgs {
		return nil, fmt.Errorf("too many arguments: %d keys, limit is %d", args.Len(), wire.MaxArgs-1)
	}
	return args, nil
}

func init() {
	addOutputFlag(callCmd, &callOutput)
	rootCmd.AddCommand(callCmd)
}
