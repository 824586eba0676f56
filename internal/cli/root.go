// Package cli wires the kriya commands: the auth flow, the protected job
// commands, and the dev stub server.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kriya-app/kriya-cli/internal/config"
	"github.com/kriya-app/kriya-cli/internal/domain"
	"github.com/kriya-app/kriya-cli/internal/session"
	"github.com/kriya-app/kriya-cli/pkg/gateway"
)

var rootCmd = &cobra.Command{
	Use:           "kriya",
	Short:         "Terminal client for the Kriya scheduled-task service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newPasswordCmd(),
		newJobsCmd(),
		newDevServerCmd(),
	)
}

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// env assembles the shared dependencies a command needs. The session store
// is opened lazily because devserver has no use for it.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newEnv() (*env, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) openSessions() (*session.Store, error) {
	store, err := session.Open(e.cfg.SessionPath())
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

func (e *env) newGateway() (*gateway.Client, error) {
	return gateway.New(gateway.Config{
		BaseURL: e.cfg.APIBaseURL,
		Timeout: e.cfg.RequestTimeout,
		Logger:  e.logger,
	})
}

// requireSession loads the persisted session, translating every failure into
// the sign-in hint. This is the protected-route guard: commands behind it
// only trust the presence and shape of the stored record.
func requireSession(ctx context.Context, store *session.Store) (domain.Session, error) {
	sess, err := store.Load(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("you are not signed in; run `kriya login` first")
	}
	return sess, nil
}
