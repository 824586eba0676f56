package stubauth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// user is a stub account. PasswordHash is empty for accounts created through
// the faked federated exchange.
type user struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// pendingOTP is an issued one-time password awaiting verification.
type pendingOTP struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// memStore is the stub's in-memory state. The real service keeps this in
// Postgres; the stub only needs to survive one dev session.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*user // keyed by normalized email
	otps     map[string]pendingOTP
	verified map[string]time.Time // emails with a recently verified OTP
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*user),
		otps:     make(map[string]pendingOTP),
		verified: make(map[string]time.Time),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *memStore) getUser(email string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	return u, ok
}

func (s *memStore) createUser(email, passwordHash string) *user {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{
		ID:           uuid.New(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.users[u.Email] = u
	return u
}

func (s *memStore) setPasswordHash(email, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return false
	}
	u.PasswordHash = hash
	return true
}

// putOTP stores an issued code, replacing any previous one for the email.
func (s *memStore) putOTP(email, code string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalizeEmail(email)
	for c, p := range s.otps {
		if p.Email == email {
			delete(s.otps, c)
		}
	}
	s.otps[code] = pendingOTP{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// consumeOTP validates a code and, on success, marks its email verified.
func (s *memStore) consumeOTP(code string, verifiedTTL time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.otps[code]
	if !ok || time.Now().After(p.ExpiresAt) {
		return "", false
	}
	delete(s.otps, code)
	s.verified[p.Email] = time.Now().Add(verifiedTTL)
	return p.Email, true
}

func (s *memStore) isVerified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.verified[normalizeEmail(email)]
	return ok && time.Now().Before(until)
}

func (s *memStore) clearVerified(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verified, normalizeEmail(email))
}
