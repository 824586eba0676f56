// Package stubauth is a development stand-in for the Kriya authentication
// service. It implements the endpoints the client consumes with an in-memory
// user store; issued one-time passwords are logged instead of emailed. Run it
// with `kriya devserver` or embed it in tests via httptest.
package stubauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"

	"github.com/kriya-app/kriya-cli/internal/federated"
	"github.com/kriya-app/kriya-cli/internal/httputil"
)

const (
	otpTTL        = 5 * time.Minute
	verifiedTTL   = 10 * time.Minute
	sessionTTL    = 15 * time.Minute
	sessionIssuer = "kriya-dev"
)

// Config holds stub server configuration.
type Config struct {
	Logger    *slog.Logger
	JWTSecret []byte
}

// Server is the stub auth service.
type Server struct {
	logger    *slog.Logger
	jwtSecret []byte
	store     *memStore
	cookies   httputil.CookieConfig
}

// New creates a stub server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:    logger,
		jwtSecret: cfg.JWTSecret,
		store:     newMemStore(),
		cookies:   httputil.DefaultCookieConfig(),
	}
}

// LastOTP returns the pending one-time password for an email, if any. The
// real service emails codes; the stub exposes them for tests and scripted
// dev loops.
func (s *Server) LastOTP(email string) (string, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for code, p := range s.store.otps {
		if p.Email == normalizeEmail(email) {
			return code, true
		}
	}
	return "", false
}

// Router returns the stub's HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			s.logger.Warn("rate limit exceeded", "ip", req.RemoteAddr, "path", req.URL.Path)
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		})))

		r.Post("/signin", s.handleSignIn)
		r.Post("/userExists", s.handleUserExists)
		r.Post("/generateOTP", s.handleGenerateOTP)
		r.Post("/verifyOTP", s.handleVerifyOTP)
		r.Post("/signup", s.handleSignUp)
		r.Post("/reset_password", s.handleResetPassword)
		r.Post("/google", s.handleGoogle)
	})

	return r
}

type authRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OTP        string `json:"otp"`
	Text       string `json:"text"`
	Credential string `json:"credential"`
}

func decode(w http.ResponseWriter, r *http.Request) (*authRequest, bool) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Fail(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, found := s.store.getUser(req.Email)
	if !found || u.PasswordHash == "" || !verifyPassword(req.Password, u.PasswordHash) {
		httputil.Fail(w, http.StatusOK, "Invalid email or password")
		return
	}

	s.establishSession(w, u.Email)
	httputil.OK(w)
}

// handleUserExists reports registration status as an explicit boolean. The
// legacy service signaled existence through HTTP 400; the boolean is the
// contract, the body carries it either way.
func (s *Server) handleUserExists(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	_, registered := s.store.getUser(req.Email)
	httputil.JSON(w, http.StatusOK, map[string]any{"registered": registered})
}

func (s *Server) handleGenerateOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	if req.Email == "" {
		httputil.Fail(w, http.StatusBadRequest, "email is required")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      sessionIssuer,
		AccountName: normalizeEmail(req.Email),
	})
	if err != nil {
		httputil.Fail(w, http.StatusInternalServerError, "Failed to send OTP")
		return
	}
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		httputil.Fail(w, http.StatusInternalServerError, "Failed to send OTP")
		return
	}

	s.store.putOTP(req.Email, code, otpTTL)
	// No SMTP in the stub: the "email" is the dev server log.
	s.logger.Info("one-time password issued", "email", normalizeEmail(req.Email), "code", code, "text", req.Text)
	httputil.OK(w)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	if _, valid := s.store.consumeOTP(req.OTP, verifiedTTL); !valid {
		httputil.Fail(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	httputil.OK(w)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Fail(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if !s.store.isVerified(req.Email) {
		httputil.Fail(w, http.StatusBadRequest, "Email is not verified")
		return
	}
	if _, exists := s.store.getUser(req.Email); exists {
		httputil.Fail(w, http.StatusBadRequest, "Email Already registered")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		httputil.Fail(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	u := s.store.createUser(req.Email, hash)
	s.store.clearVerified(req.Email)

	s.establishSession(w, u.Email)
	httputil.OK(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Fail(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		httputil.Fail(w, http.StatusInternalServerError, "Failed to reset password.")
		return
	}
	if !s.store.setPasswordHash(req.Email, hash) {
		httputil.Fail(w, http.StatusBadRequest, "Email is not registered")
		return
	}
	httputil.OK(w)
}

// handleGoogle fakes the federated exchange: the credential's claims are
// decoded but not verified against Google. Good enough for a dev loop, never
// for production.
func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}
	claims, err := federated.ParseClaims(req.Credential)
	if err != nil {
		httputil.Fail(w, http.StatusBadRequest, "Login failed, please try again.")
		return
	}

	u, found := s.store.getUser(claims.Email)
	if !found {
		u = s.store.createUser(claims.Email, "")
	}
	s.establishSession(w, u.Email)
	httputil.OK(w)
}

func (s *Server) establishSession(w http.ResponseWriter, email string) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("sign session token", "error", err)
		return
	}
	httputil.SetSessionCookie(w, signed, sessionTTL, s.cookies)
}
