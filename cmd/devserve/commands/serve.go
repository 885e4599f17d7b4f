package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devserve-run/devserve/internal/config"
	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/orchestrator"
)

var serveCommand string

var serveCmd = &cobra.Command{
	Use:   "serve [directory]",
	Short: "Launch and preview a project's dev server",
	Long: `Launch the right dev server for a project directory, print the URL
it is listening on, and keep it running until interrupted. Falls back
to a static file server when no dev server can be launched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		bus := event.NewBus()
		defer bus.Close()
		mirrorEvents(bus)

		orch := orchestrator.New(cfg, bus)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := orch.Serve(ctx, dir, serveCommand)
		if err != nil {
			return err
		}
		defer result.Stop()

		fmt.Printf("  Local:    %s\n", result.LocalURL)
		if result.ExternalURL != result.LocalURL {
			fmt.Printf("  Network:  %s\n", result.ExternalURL)
		}
		fmt.Println("\nPress Ctrl+C to stop.")

		<-ctx.Done()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveCommand, "command", "c", "", "Explicit command to launch the dev server")
}

// mirrorEvents prints the status stream to stdout.
func mirrorEvents(bus *event.Bus) {
	bus.SubscribeAll(func(e event.Event) {
		switch e.Type {
		case event.ProcessOutput, event.InstallOutput:
			fmt.Print(e.Message)
			if len(e.Message) > 0 && e.Message[len(e.Message)-1] != '\n' {
				fmt.Println()
			}
		case event.ServeError, event.InstallStale:
			fmt.Fprintln(os.Stderr, e.Message)
		}
	})
}
