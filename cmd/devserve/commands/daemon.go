package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devserve-run/devserve/internal/config"
	"github.com/devserve-run/devserve/internal/logging"
	"github.com/devserve-run/devserve/internal/server"
)

var daemonPort int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the devserve HTTP daemon",
	Long: `Expose serve/stop/static operations and the status event stream
over a loopback HTTP API, for host surfaces that embed previews.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}

		srvCfg := server.DefaultConfig()
		if daemonPort > 0 {
			srvCfg.Port = daemonPort
		} else if cfg.Daemon != nil && cfg.Daemon.Port > 0 {
			srvCfg.Port = cfg.Daemon.Port
		}

		srv := server.New(srvCfg, cfg, nil)

		errCh := make(chan error, 1)
		go func() {
			logging.Info().Int("port", srvCfg.Port).Msg("daemon listening")
			errCh <- srv.Start()
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	daemonCmd.Flags().IntVarP(&daemonPort, "port", "p", 0, "Daemon port (default 7321)")
}
