// Package federated acquires a Google sign-in credential for the terminal
// client. It stands in for the browser's embedded Google button: a one-shot
// localhost listener serves the Google Identity Services page, receives the
// posted ID token, and hands it to the auth flow. The token is never trusted
// locally beyond labeling; verification happens server-side in the
// federated-exchange operation.
package federated

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims of a Google ID token the client cares about.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ParseClaims decodes the credential's claims without verifying its
// signature. The backend verifies the token during the exchange; the client
// only needs the email to label the session record.
func ParseClaims(credential string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("credential has no email claim")
	}
	return claims, nil
}

// ErrAborted is returned when the user gives up before signing in.
var ErrAborted = errors.New("federated sign-in aborted")

// Config holds listener configuration.
type Config struct {
	ClientID string
	Port     int // 0 picks a free port
	Logger   *slog.Logger
}

// Listener runs the one-shot credential capture.
type Listener struct {
	config Config
	logger *slog.Logger
	ln     net.Listener
}

// NewListener creates a listener and binds its localhost port, so URL is
// known before Acquire blocks.
func NewListener(cfg Config) (*Listener, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client ID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Listener{config: cfg, logger: logger, ln: ln}, nil
}

// URL returns the address the user must open in a browser.
func (l *Listener) URL() string {
	return "http://" + l.ln.Addr().String()
}

// Close releases the port without waiting for a credential.
func (l *Listener) Close() error {
	return l.ln.Close()
}

var signInPage = template.Must(template.New("signin").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in to Kriya</title>
<script src="https://accounts.google.com/gsi/client" async></script>
</head>
<body>
<div id="g_id_onload"
     data-client_id="{{.ClientID}}"
     data-login_uri="{{.LoginURI}}"
     data-ux_mode="redirect"></div>
<div class="g_id_signin" data-type="standard"></div>
</body>
</html>`))

// Acquire serves the sign-in page on localhost, prints the URL for the user
// to open, and blocks until a credential is posted back or ctx is done. The
// listener shuts down after the first credential.
func (l *Listener) Acquire(ctx context.Context) (string, error) {
	credentials := make(chan string, 1)
	base := l.URL()

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = signInPage.Execute(w, map[string]string{
			"ClientID": l.config.ClientID,
			"LoginURI": base + "/credential",
		})
	})
	r.Post("/credential", func(w http.ResponseWriter, req *http.Request) {
		cred := req.PostFormValue("credential")
		if cred == "" {
			http.Error(w, "missing credential", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Signed in. You can close this tab and return to the terminal.</body></html>")
		select {
		case credentials <- cred:
		default:
		}
	})

	server := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("callback server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	l.logger.Info("waiting for Google sign-in", "url", base)

	select {
	case cred := <-credentials:
		return cred, nil
	case <-ctx.Done():
		return "", ErrAborted
	}
}
