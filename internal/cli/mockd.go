package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/fixture"
)

var (
	mockdFixture string
	mockdPIDFile bool
)

var mockdCmd = &cobra.Command{
	Use:   "mockd",
	Short: "Run a fake Dropbox daemon",
	Long: "Listen on the command and hook sockets and answer from a YAML fixture,\n" +
		"sending its scheduled notifications to connected clients. Without\n" +
		"--fixture a built-in fixture is used.",
	Args: cobra.NoArgs,
	RunE: runMockd,
}

func runMockd(cmd *cobra.Command, args []string) error {
	fx := fixture.Default()
	if mockdFixture != "" {
		var err error
		if fx, err = fixture.Load(mockdFixture); err != nil {
			return err
		}
	}

	opts := daemon.OptionsFromConfig(cfg)
	commandPath, err := opts.CommandPath()
	if err != nil {
		return fmt.Errorf("resolve command socket: %w", err)
	}
	hookPath, err := opts.HookPath()
	if err != nil {
		return fmt.Errorf("resolve hook socket: %w", err)
	}

	if running, pid := daemon.IsDropboxRunning(daemon.DefaultPIDPath()); running && pid != os.Getpid() {
		return fmt.Errorf("a dropbox daemon is already running (pid %d)", pid)
	}

	srv := daemon.NewServer(commandPath, hookPath, fx)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start fake daemon: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	if mockdPIDFile {
		if err := daemon.WritePID(""); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer func() { _ = daemon.RemovePID("") }()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "📦 Fake daemon listening\n   command: %s\n   hook:    %s\n", commandPath, hookPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fx.Play(ctx, srv)
	})
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("fake daemon stopping")
	fmt.Fprintln(cmd.OutOrStdout(), "📦 Fake daemon stopped")
	return nil
}

func init() {
	mockdCmd.Flags().StringVarP(&mockdFixture, "fixture", "f", "", "YAML fixture file")
	mockdCmd.Flags().BoolVar(&mockdPIDFile, "pid-file", true, "write dropbox.pid so liveness checks see the fake daemon")
	rootCmd.AddCommand(mockdCmd)
}
