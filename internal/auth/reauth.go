package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Micheline922/kairo/internal/supabase"
)

// ErrInvalidCredentials is returned when a password does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// Reauthenticator confirms that the signed-in user knows their password
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, user *User, password string) error
}

// SupabaseReauthenticator checks the password with a Supabase password
// grant. The client should use the project's anon key.
type SupabaseReauthenticator struct {
	client *supabase.Client
}

// NewSupabaseReauthenticator creates a reauthenticator on client
func NewSupabaseReauthenticator(client *supabase.Client) *SupabaseReauthenticator {
	return &SupabaseReauthenticator{client: client}
}

// Reauthenticate signs in with the user's email and password. The account
// that signs in must be the one in the token.
func (s *SupabaseReauthenticator) Reauthenticate(ctx context.Context, user *User, password string) error {
	if user == nil || user.Email == "" || password == "" {
		return ErrInvalidCredentials
	}

	resp, err := s.client.Auth().SignIn(ctx, user.Email, password)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("supabase sign-in: %w", err)
	}

	if resp.User != nil && resp.User.ID != "" && resp.User.ID != user.ID {
		return ErrInvalidCredentials
	}
	return nil
}

// StaticReauthenticator checks passwords against bcrypt hashes keyed by
// email, for deployments without Supabase Auth
type StaticReauthenticator struct {
	hashes map[string][]byte
}

// NewStaticReauthenticator creates a reauthenticator from email to bcrypt
// hash pairs
func NewStaticReauthenticator(hashes map[string]string) (*StaticReauthenticator, error) {
	s := &StaticReauthenticator{hashes: make(map[string][]byte, len(hashes))}
	for email, hash := range hashes {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash for %s: %w", email, err)
		}
		s.hashes[strings.ToLower(email)] = []byte(hash)
	}
	return s, nil
}

// Reauthenticate compares password with the hash stored for the user's email
func (s *StaticReauthenticator) Reauthenticate(ctx context.Context, user *User, password string) error {
	if user == nil || user.Email == "" {
		return ErrInvalidCredentials
	}
	hash, ok := s.hashes[strings.ToLower(user.Email)]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
