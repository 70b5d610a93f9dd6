package terminal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session records one successfully initialized terminal login.
// The password is used once against the bridge and never retained.
type Session struct {
	Login         int64
	Server        string
	Path          string
	InitializedAt time.Time
}

// SessionManager tracks which accounts currently have an active terminal
// session. Trade and stream requests for accounts without a session are
// rejected before any bridge traffic happens.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	logger   *zap.Logger
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]Session),
		logger:   logger,
	}
}

// Register records a session for the account, replacing any previous one.
func (m *SessionManager) Register(login int64, server, path string) {
	m.mu.Lock()
	m.sessions[login] = Session{
		Login:         login,
		Server:        server,
		Path:          path,
		InitializedAt: time.Now(),
	}
	m.mu.Unlock()

	m.logger.Info("Registered terminal session", zap.Int64("login", login), zap.String("server", server))
}

// Get returns the session for the account, if one exists.
func (m *SessionManager) Get(login int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[login]
	return s, ok
}

// Initialized reports whether the account has an active session.
func (m *SessionManager) Initialized(login int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[login]
	return ok
}
