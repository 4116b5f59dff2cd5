package lock

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/metrics"
)

// ErrLocked is returned when the journal is locked for the user or the
// unlock token is wrong or expired
var ErrLocked = errors.New("journal is locked")

// Session is an unlocked journal for one user
type Session struct {
	UserID       string
	Token        string
	UnlockedAt   time.Time
	LastActivity time.Time
}

// Status describes the lock state of a user's journal
type Status struct {
	Unlocked       bool       `json:"unlocked"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	FailedAttempts int        `json:"failedAttempts"`
}

// Config contains lock manager settings
type Config struct {
	TTL           time.Duration // idle time before an unlocked journal locks again
	CleanupPeriod time.Duration
}

// Manager keeps the journal of every user locked until they re-enter
// their password. Unlocked sessions expire after TTL without activity.
type Manager struct {
	sessions map[string]*Session
	failures map[string]int
	mu       sync.Mutex

	reauth  auth.Reauthenticator
	ttl     time.Duration
	period  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager creates a lock manager. m may be nil.
func NewManager(reauth auth.Reauthenticator, config Config, m *metrics.Metrics, logger *slog.Logger) (*Manager, error) {
	if reauth == nil {
		return nil, errors.New("reauthenticator is required")
	}
	if config.TTL <= 0 {
		return nil, errors.New("unlock ttl must be positive")
	}
	if config.CleanupPeriod <= 0 {
		config.CleanupPeriod = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		sessions: make(map[string]*Session),
		failures: make(map[string]int),
		reauth:   reauth,
		ttl:      config.TTL,
		period:   config.CleanupPeriod,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Unlock re-authenticates the user and opens their journal. The returned
// session token must accompany every journal request.
func (m *Manager) Unlock(ctx context.Context, user *auth.User, password string) (*Session, error) {
	if user == nil || user.ID == "" {
		return nil, auth.ErrInvalidCredentials
	}

	if err := m.reauth.Reauthenticate(ctx, user, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			m.mu.Lock()
			m.failures[user.ID]++
			failures := m.failures[user.ID]
			m.mu.Unlock()

			m.metrics.RecordUnlockAttempt(false)
			m.logger.Warn("Journal unlock rejected",
				slog.String("user_id", user.ID),
				slog.Int("failed_attempts", failures),
			)
		}
		return nil, err
	}

	now := m.now()
	session := &Session{
		UserID:       user.ID,
		Token:        uuid.NewString(),
		UnlockedAt:   now,
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[user.ID] = session
	delete(m.failures, user.ID)
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.RecordUnlockAttempt(true)
	m.metrics.SetActiveUnlocks(active)
	m.logger.Info("Journal unlocked", slog.String("user_id", user.ID))

	copied := *session
	return &copied, nil
}

// Check verifies the unlock token of a user and refreshes the session
func (m *Manager) Check(userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok || token == "" {
		return ErrLocked
	}
	if subtle.ConstantTimeCompare([]byte(session.Token), []byte(token)) != 1 {
		return ErrLocked
	}

	now := m.now()
	if now.Sub(session.LastActivity) > m.ttl {
		delete(m.sessions, userID)
		m.metrics.SetActiveUnlocks(len(m.sessions))
		return ErrLocked
	}

	session.LastActivity = now
	return nil
}

// Lock closes the user's journal. It reports whether it was unlocked.
func (m *Manager) Lock(userID string) bool {
	m.mu.Lock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	active := len(m.sessions)
	m.mu.Unlock()

	if ok {
		m.metrics.SetActiveUnlocks(active)
		m.logger.Info("Journal locked", slog.String("user_id", userID))
	}
	return ok
}

// Status returns the lock state of the user's journal
func (m *Manager) Status(userID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{FailedAttempts: m.failures[userID]}
	session, ok := m.sessions[userID]
	if !ok {
		return status
	}

	expiresAt := session.LastActivity.Add(m.ttl)
	if !m.now().Before(expiresAt) {
		return status
	}
	status.Unlocked = true
	status.ExpiresAt = &expiresAt
	return status
}

// GetActiveSessionCount returns the number of unlocked journals
func (m *Manager) GetActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run expires idle sessions every cleanup period until ctx is done
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	m.logger.Info("Journal lock cleanup routine started",
		slog.Duration("ttl", m.ttl),
		slog.Duration("check_interval", m.period),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Journal lock cleanup routine stopping",
				slog.Int("remaining_sessions", m.GetActiveSessionCount()),
			)
			return nil
		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions locks journals that have been idle for too long
func (m *Manager) cleanupExpiredSessions() int {
	now := m.now()

	m.mu.Lock()
	expired := 0
	for userID, session := range m.sessions {
		if now.Sub(session.LastActivity) > m.ttl {
			delete(m.sessions, userID)
			expired++
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if expired > 0 {
		m.metrics.SetActiveUnlocks(active)
		m.logger.Info("Cleaned up expired journal sessions",
			slog.Int("expired_count", expired),
			slog.Int("active_count", active),
		)
	}
	return expired
}
