package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kriya-app/kriya-cli/internal/federated"
	"github.com/kriya-app/kriya-cli/internal/tui"
	"github.com/kriya-app/kriya-cli/pkg/authflow"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to Kriya",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthFlow(cmd.Context(), authflow.StateSignIn)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create a Kriya account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthFlow(cmd.Context(), authflow.StateSignUp)
		},
	}
}

func runAuthFlow(ctx context.Context, initial authflow.State) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	store, err := e.openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := e.newGateway()
	if err != nil {
		return err
	}

	var acquire tui.CredentialSource
	if e.cfg.HasGoogle() {
		clientID := e.cfg.GoogleClientID
		port := e.cfg.CallbackPort
		logger := e.logger
		acquire = func(ctx context.Context) (string, error) {
			l, err := federated.NewListener(federated.Config{
				ClientID: clientID,
				Port:     port,
				Logger:   logger,
			})
			if err != nil {
				return "", err
			}
			// stderr, because bubbletea owns stdout while this runs.
			if err := openBrowser(l.URL()); err != nil {
				fmt.Fprintf(os.Stderr, "Open %s in your browser to continue with Google\n", l.URL())
			}
			return l.Acquire(ctx)
		}
	}

	model := tui.NewAuthModel(initial, client, store.Save, acquire)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("run auth flow: %w", err)
	}

	auth, ok := final.(tui.AuthModel)
	if !ok {
		return nil
	}
	if auth.Err() != nil {
		return auth.Err()
	}
	if boot := auth.Finished(); boot != nil {
		fmt.Printf("Signed in as %s\n", boot.Email)
	}
	return nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			store, err := e.openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			store, err := e.openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := requireSession(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Println(sess.Email)
			if !sess.HasLocalPassword {
				fmt.Println("(federated sign-in; run `kriya password set` to add a password)")
			}
			return nil
		},
	}
}

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the account password",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Set a password for a federated account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswordUpgrade(cmd.Context())
		},
	})
	return cmd
}

func runPasswordUpgrade(ctx context.Context) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	store, err := e.openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := requireSession(ctx, store)
	if err != nil {
		return err
	}
	if sess.HasLocalPassword {
		fmt.Println("This account already has a password.")
		return nil
	}

	client, err := e.newGateway()
	if err != nil {
		return err
	}

	reset := func(ctx context.Context, email, password string) (bool, string, error) {
		r, err := client.ResetPassword(ctx, email, password)
		return r.OK, r.Message, err
	}
	persist := func(ctx context.Context) error {
		return store.SetHasLocalPassword(ctx, true)
	}

	model := tui.NewUpgradeModel(sess.Email, reset, persist)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("run password upgrade: %w", err)
	}

	if up, ok := final.(tui.UpgradeModel); ok {
		if up.Err() != nil {
			return up.Err()
		}
		if up.Completed() {
			fmt.Println("Password set.")
		}
	}
	return nil
}
