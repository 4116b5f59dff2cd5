package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Micheline922/kairo/internal/supabase"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "6b1d3c5e-user",
		"email": "marie@example.com",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return v
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", nil)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	v := newTestVerifier(t)

	user, err := v.Verify(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "6b1d3c5e-user", Email: "marie@example.com", Role: "authenticated"}, user)
}

func TestVerifyRejects(t *testing.T) {
	v := newTestVerifier(t)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noSubject := validClaims()
	delete(noSubject, "sub")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("another-secret"), validClaims())},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no subject", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"hs512", signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"none", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := newTestVerifier(t)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	var seen *User
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Nil(t, seen)
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, "6b1d3c5e-user", seen.ID)
			}
		})
	}
}

func TestUserFromContextEmpty(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))
}

func TestStaticReauthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Shalom-2026"), bcrypt.MinCost)
	require.NoError(t, err)

	r, err := NewStaticReauthenticator(map[string]string{"Marie@Example.com": string(hash)})
	require.NoError(t, err)

	ctx := context.Background()
	user := &User{ID: "u1", Email: "marie@example.com"}

	assert.NoError(t, r.Reauthenticate(ctx, user, "Shalom-2026"))
	assert.ErrorIs(t, r.Reauthenticate(ctx, user, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.Reauthenticate(ctx, &User{ID: "u2", Email: "paul@example.com"}, "Shalom-2026"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.Reauthenticate(ctx, &User{ID: "u3"}, "Shalom-2026"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.Reauthenticate(ctx, nil, "Shalom-2026"), ErrInvalidCredentials)
}

func TestStaticReauthenticatorRejectsBadHash(t *testing.T) {
	_, err := NewStaticReauthenticator(map[string]string{"marie@example.com": "plaintext"})
	assert.Error(t, err)
}

func TestSupabaseReauthenticator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&creds)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case creds.Password == "outage":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message":"down"}`))
		case creds.Password != "Shalom-2026":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
		default:
			id := "u1"
			if creds.Email == "other@example.com" {
				id = "someone-else"
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token",
				"token_type":   "bearer",
				"user":         map[string]string{"id": id, "email": creds.Email},
			})
		}
	}))
	defer srv.Close()

	client, err := supabase.New(supabase.Config{
		URL:    srv.URL,
		APIKey: "anon-key",
		Retry:  supabase.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	r := NewSupabaseReauthenticator(client)
	ctx := context.Background()

	assert.NoError(t, r.Reauthenticate(ctx, &User{ID: "u1", Email: "marie@example.com"}, "Shalom-2026"))
	assert.ErrorIs(t, r.Reauthenticate(ctx, &User{ID: "u1", Email: "marie@example.com"}, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.Reauthenticate(ctx, &User{ID: "u1", Email: "other@example.com"}, "Shalom-2026"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.Reauthenticate(ctx, &User{ID: "u1", Email: "marie@example.com"}, ""), ErrInvalidCredentials)

	err = r.Reauthenticate(ctx, &User{ID: "u1", Email: "marie@example.com"}, "outage")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
