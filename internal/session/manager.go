package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/medtranslate/internal/audit"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusEnded   Status = "ended"
)

// DefaultInactivityTimeout is the idle window after which a session is purged.
const DefaultInactivityTimeout = 15 * time.Minute

type Session struct {
	ID             string    `json:"session_id"`
	ConsentGiven   bool      `json:"consent_given"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Manager owns the session table. No operation returns an error: absence
// and expiry are reported as booleans.
type Manager struct {
	mu                sync.Mutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	auditor           *audit.Logger
	onExpire          func(*Session)
	onEnd             func(*Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration, auditor *audit.Logger) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = DefaultInactivityTimeout
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
		auditor:           auditor,
		now:               time.Now,
	}
}

// SetExpireHook registers a callback run, outside the lock, for every session
// evicted because it idled out.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// SetEndHook registers a callback run, outside the lock, for every session
// removed by End.
func (m *Manager) SetEndHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = hook
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

func (m *Manager) Timeout() time.Duration { return m.inactivityTimeout }

// Create always succeeds, including for a denied consent.
func (m *Manager) Create(ctx context.Context, consentGiven bool) string {
	m.mu.Lock()
	now := m.now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		ConsentGiven:   consentGiven,
		Status:         StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.auditor.Log(ctx, s.ID, audit.ActionSessionCreated, map[string]any{"consent_provided": consentGiven})
	return s.ID
}

// Validate reports whether id names a live session. A live session has its
// activity bumped; an idle one is evicted and reported false.
func (m *Manager) Validate(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	now := m.now().UTC()
	if now.Sub(s.LastActivityAt) > m.inactivityTimeout {
		expired := m.evictLocked(s)
		hook := m.onExpire
		m.mu.Unlock()
		m.afterExpire(ctx, expired, now, hook)
		return false
	}
	s.LastActivityAt = now
	m.mu.Unlock()
	return true
}

// End removes id. It reports false when there was nothing to remove.
func (m *Manager) End(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, id)
	s.Status = StatusEnded
	ended := clone(s)
	hook := m.onEnd
	m.mu.Unlock()

	m.auditor.Log(ctx, id, audit.ActionSessionEnded, nil)
	if hook != nil {
		hook(ended)
	}
	return true
}

// Get returns a copy of the session without touching its activity.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return clone(s), true
}

// Count returns the number of sessions in the table.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartJanitor sweeps idle sessions every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ExpireInactive(ctx)
			}
		}
	}()
}

// ExpireInactive evicts every session idle for longer than the timeout and
// returns how many were removed.
func (m *Manager) ExpireInactive(ctx context.Context) int {
	var expired []*Session

	m.mu.Lock()
	now := m.now().UTC()
	for _, s := range m.sessions {
		if now.Sub(s.LastActivityAt) <= m.inactivityTimeout {
			continue
		}
		expired = append(expired, m.evictLocked(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range expired {
		m.afterExpire(ctx, s, now, hook)
	}
	return len(expired)
}

func (m *Manager) evictLocked(s *Session) *Session {
	delete(m.sessions, s.ID)
	s.Status = StatusExpired
	return clone(s)
}

func (m *Manager) afterExpire(ctx context.Context, s *Session, now time.Time, hook func(*Session)) {
	m.auditor.Log(ctx, s.ID, audit.ActionSessionExpired, map[string]any{
		"idle_seconds": int64(now.Sub(s.LastActivityAt).Seconds()),
	})
	if hook != nil {
		hook(s)
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
