package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kriya-app/kriya-cli/internal/stubauth"
)

func newDevServerCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the local stub auth service",
		Long: `Run an in-memory stand-in for the Kriya backend on localhost.
It implements the auth endpoints the client talks to; one-time passwords
are logged instead of emailed. Nothing survives a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = e.cfg.DevServerAddr
			}

			// Issued one-time passwords are logged at info, so the stub
			// needs a chattier logger than the client commands use.
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			srv := stubauth.New(stubauth.Config{
				Logger:    logger,
				JWTSecret: []byte(e.cfg.DevJWTSecret),
			})
			server := &http.Server{
				Addr:         addr,
				Handler:      srv.Router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("Stub auth service listening on http://%s\n", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("devserver: %w", err)
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to KRIYA_DEVSERVER_ADDR)")
	return cmd
}
