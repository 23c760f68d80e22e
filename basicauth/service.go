package basicauth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

var ErrInvalidCredentials = errors.New("invalid basic auth credentials")

// Service holds the server-side basic-auth user. The password is kept as a
// bcrypt hash.
type Service struct {
	mu               sync.RWMutex
	username         string
	passwordHash     string
	validationErrors []string
}

// NewService starts from configured credentials. Empty credentials leave
// basic auth uninitialized without errors; invalid ones are recorded as
// validation errors.
func NewService(configured Credentials) (*Service, error) {
	s := &Service{}
	if configured.Empty() {
		return s, nil
	}
	if errs := configured.Validate(); len(errs) > 0 {
		s.validationErrors = errs
		return s, nil
	}
	if err := s.set(configured); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) set(c Credentials) error {
	hash, err := users.HashPassword(c.Password)
	if err != nil {
		return fmt.Errorf("[basicauth Service] %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = c.Username
	s.passwordHash = hash
	s.validationErrors = nil
	return nil
}

// Save replaces the user, as done by the setup screen.
func (s *Service) Save(c Credentials) error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, strings.Join(errs, " "))
	}
	return s.set(c)
}

func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passwordHash != ""
}

// ValidationErrors returns a copy of the configuration problems.
func (s *Service) ValidationErrors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.validationErrors...)
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(username, password string) bool {
	s.mu.RLock()
	u, hash := s.username, s.passwordHash
	s.mu.RUnlock()
	if hash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 {
		return false
	}
	return users.CheckPasswordHash(password, hash)
}
