package stubauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kriya-app/kriya-cli/internal/federated"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{JWTSecret: []byte("test-secret")})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path string, body map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestUserExists(t *testing.T) {
	s, ts := newTestServer(t)

	_, payload := post(t, ts, "/auth/userExists", map[string]string{"email": "nobody@example.com"})
	if payload["registered"] != false {
		t.Errorf("registered = %v, want false", payload["registered"])
	}

	hash, err := hashPassword("secret99")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.store.createUser("somebody@example.com", hash)

	_, payload = post(t, ts, "/auth/userExists", map[string]string{"email": "Somebody@Example.com"})
	if payload["registered"] != true {
		t.Errorf("registered = %v, want true", payload["registered"])
	}
}

func TestSignUpFlow(t *testing.T) {
	s, ts := newTestServer(t)

	// Sign-up without a verified OTP must be rejected.
	_, payload := post(t, ts, "/auth/signup", map[string]string{"email": "new@example.com", "password": "secret99"})
	if payload["success"] != false {
		t.Fatal("signup should fail before OTP verification")
	}

	resp, payload := post(t, ts, "/auth/generateOTP", map[string]string{
		"email": "new@example.com",
		"text":  "This is your one time password to register into Kriya",
	})
	if resp.StatusCode != http.StatusOK || payload["success"] != true {
		t.Fatalf("generateOTP failed: %d %v", resp.StatusCode, payload)
	}

	code := issuedCode(t, s, "new@example.com")

	_, payload = post(t, ts, "/auth/verifyOTP", map[string]string{"otp": code})
	if payload["success"] != true {
		t.Fatalf("verifyOTP failed: %v", payload)
	}

	resp, payload = post(t, ts, "/auth/signup", map[string]string{"email": "new@example.com", "password": "secret99"})
	if payload["success"] != true {
		t.Fatalf("signup failed: %v", payload)
	}
	if !hasSessionCookie(resp) {
		t.Error("signup should set the session cookie")
	}

	// Second registration of the same email is a business failure.
	_, payload = post(t, ts, "/auth/generateOTP", map[string]string{"email": "new@example.com"})
	code = issuedCode(t, s, "new@example.com")
	post(t, ts, "/auth/verifyOTP", map[string]string{"otp": code})
	_, payload = post(t, ts, "/auth/signup", map[string]string{"email": "new@example.com", "password": "other"})
	if payload["message"] != "Email Already registered" {
		t.Errorf("message = %v", payload["message"])
	}
}

func TestSignIn(t *testing.T) {
	s, ts := newTestServer(t)
	hash, err := hashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.store.createUser("user@example.com", hash)

	resp, payload := post(t, ts, "/auth/signin", map[string]string{"email": "user@example.com", "password": "hunter22"})
	if payload["success"] != true {
		t.Fatalf("signin failed: %v", payload)
	}
	if !hasSessionCookie(resp) {
		t.Error("signin should set the session cookie")
	}

	_, payload = post(t, ts, "/auth/signin", map[string]string{"email": "user@example.com", "password": "wrong"})
	if payload["success"] != false || payload["message"] != "Invalid email or password" {
		t.Errorf("payload = %v", payload)
	}
}

func TestResetPassword(t *testing.T) {
	s, ts := newTestServer(t)
	hash, err := hashPassword("oldpass1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.store.createUser("user@example.com", hash)

	_, payload := post(t, ts, "/auth/reset_password", map[string]string{"email": "user@example.com", "password": "newpass1"})
	if payload["success"] != true {
		t.Fatalf("reset failed: %v", payload)
	}

	_, payload = post(t, ts, "/auth/signin", map[string]string{"email": "user@example.com", "password": "newpass1"})
	if payload["success"] != true {
		t.Error("sign-in with the new password should succeed")
	}

	_, payload = post(t, ts, "/auth/reset_password", map[string]string{"email": "ghost@example.com", "password": "x"})
	if payload["message"] != "Email is not registered" {
		t.Errorf("message = %v", payload["message"])
	}
}

func TestVerifyOTPRejectsUnknownAndReusedCodes(t *testing.T) {
	s, ts := newTestServer(t)

	_, payload := post(t, ts, "/auth/verifyOTP", map[string]string{"otp": "000000"})
	if payload["success"] != false {
		t.Error("unknown code should be rejected")
	}

	post(t, ts, "/auth/generateOTP", map[string]string{"email": "a@example.com"})
	code := issuedCode(t, s, "a@example.com")

	_, payload = post(t, ts, "/auth/verifyOTP", map[string]string{"otp": code})
	if payload["success"] != true {
		t.Fatal("first use should succeed")
	}
	_, payload = post(t, ts, "/auth/verifyOTP", map[string]string{"otp": code})
	if payload["success"] != false {
		t.Error("a consumed code must not verify twice")
	}
}

func TestGoogleExchange(t *testing.T) {
	_, ts := newTestServer(t)

	cred := makeGoogleCredential(t, "fed@example.com")
	resp, payload := post(t, ts, "/auth/google", map[string]string{"credential": cred})
	if payload["success"] != true {
		t.Fatalf("google exchange failed: %v", payload)
	}
	if !hasSessionCookie(resp) {
		t.Error("exchange should set the session cookie")
	}

	_, payload = post(t, ts, "/auth/google", map[string]string{"credential": "garbage"})
	if payload["success"] != false {
		t.Error("garbage credential should be rejected")
	}
}

func issuedCode(t *testing.T, s *Server, email string) string {
	t.Helper()
	code, ok := s.LastOTP(email)
	if !ok {
		t.Fatalf("no pending OTP for %s", email)
	}
	return code
}

func hasSessionCookie(resp *http.Response) bool {
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" && c.Value != "" {
			return true
		}
	}
	return false
}

func makeGoogleCredential(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &federated.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: fmt.Sprintf("sub-%s", email)},
		Email:            email,
		EmailVerified:    true,
	})
	signed, err := token.SignedString([]byte("whatever"))
	if err != nil {
		t.Fatalf("sign credential: %v", err)
	}
	return signed
}
