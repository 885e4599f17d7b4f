package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/orchestrator"
)

var staticCmd = &cobra.Command{
	Use:   "static [directory]",
	Short: "Serve a directory as static files, bypassing strategy selection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		bus := event.NewBus()
		defer bus.Close()

		orch := orchestrator.New(nil, bus)
		result, err := orch.ServeDirectoryDirectly(dir)
		if err != nil {
			return err
		}
		defer result.Stop()

		fmt.Printf("  Local:    %s\n", result.LocalURL)
		fmt.Println("\nPress Ctrl+C to stop.")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}
