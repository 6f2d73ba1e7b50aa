package session

import (
	"context"
	"sync"
	"time"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/metrics"
	"ai-study-portal-be/internal/repository/memory"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
)

// Archive persists sessions beyond the in-memory window. Writes are
// best-effort: memory stays the source of truth while a session is live.
type Archive interface {
	SaveSession(ctx context.Context, s *store.Session) error
	AppendTurn(ctx context.Context, sessionID string, seq int, turn store.Turn) error
	LoadSession(ctx context.Context, sessionID string) (*store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Manager owns every session mutation. Callers only ever receive clones.
type Manager struct {
	repo    *memory.SessionRepository
	archive Archive
	logger  logger.ILogger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager creates a new session manager. archive may be nil.
func NewManager(repo *memory.SessionRepository, archive Archive, log logger.ILogger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	mgr := &Manager{
		repo:    repo,
		archive: archive,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
	repo.OnEvicted(func(id string) {
		mgr.metrics.SetActiveSessions(repo.Count())
		mgr.logger.Debug("SessionManager", "Session left memory", map[string]interface{}{"session_id": id})
	})
	return mgr
}

func (m *Manager) CreateSession(ctx context.Context, owner string) (*store.Session, error) {
	if owner == "" {
		owner = store.AnonymousOwner
	}
	now := m.now()
	s := &store.Session{
		ID:            uuid.NewString(),
		Owner:         owner,
		DocumentScope: []string{},
		History:       []store.Turn{},
		Mode:          store.ModeChat,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	entry := m.repo.Add(s.ID, memory.NewSessionEntry(s))
	m.metrics.SetActiveSessions(m.repo.Count())

	entry.Lock()
	snapshot := entry.Session.Clone()
	entry.Unlock()

	m.archiveSession(ctx, snapshot)
	return snapshot, nil
}

// GetSession returns a snapshot of the session
func (m *Manager) GetSession(ctx context.Context, id string) (*store.Session, error) {
	entry, err := m.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.Lock()
	defer entry.Unlock()
	return entry.Session.Clone(), nil
}

// SetDocumentScope replaces the scope with the deduplicated ids
func (m *Manager) SetDocumentScope(ctx context.Context, id string, ids []string) error {
	return m.mutate(ctx, id, func(s *store.Session) {
		s.DocumentScope = store.NormalizeScope(ids)
	})
}

func (m *Manager) SetMode(ctx context.Context, id string, mode store.Mode) error {
	if !mode.Valid() {
		return store.ErrInvalidMode
	}
	return m.mutate(ctx, id, func(s *store.Session) {
		s.Mode = mode
	})
}

// AppendTurn appends turn to the history. Missing ids and timestamps are
// filled in. Any assistant turn completes the pending interaction, so the
// mode falls back to chat.
func (m *Manager) AppendTurn(ctx context.Context, id string, turn store.Turn) (store.Turn, error) {
	entry, err := m.entry(ctx, id)
	if err != nil {
		return store.Turn{}, err
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}

	entry.Lock()
	s := entry.Session
	s.History = append(s.History, turn)
	seq := len(s.History)
	modeReset := false
	if turn.Role == store.RoleAssistant && s.Mode != store.ModeChat {
		s.Mode = store.ModeChat
		modeReset = true
	}
	s.UpdatedAt = turn.Timestamp
	var snapshot *store.Session
	if modeReset {
		snapshot = s.Clone()
	}
	entry.Unlock()

	if m.archive != nil {
		if err := m.archive.AppendTurn(ctx, id, seq, turn); err != nil {
			m.logger.Warn("SessionManager", "Failed to archive turn", map[string]interface{}{"session_id": id, "error": err.Error()})
		}
		if snapshot != nil {
			m.archiveSession(ctx, snapshot)
		}
	}
	return turn, nil
}

// Acquire claims the session's single orchestration slot. It never blocks:
// a session that is already busy yields ErrSessionBusy. release is idempotent.
func (m *Manager) Acquire(ctx context.Context, id string) (func(), error) {
	entry, err := m.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.TryAcquire() {
		m.metrics.IncBusy()
		return nil, store.ErrSessionBusy
	}
	m.repo.Pin(id, entry)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.repo.Unpin(id)
			entry.Release()
		})
	}, nil
}

func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if _, err := m.entry(ctx, id); err != nil {
		return err
	}
	m.repo.Delete(id)
	m.metrics.SetActiveSessions(m.repo.Count())

	if m.archive != nil {
		if err := m.archive.DeleteSession(ctx, id); err != nil {
			m.logger.Warn("SessionManager", "Failed to delete archived session", map[string]interface{}{"session_id": id, "error": err.Error()})
		}
	}
	return nil
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(s *store.Session)) error {
	entry, err := m.entry(ctx, id)
	if err != nil {
		return err
	}
	entry.Lock()
	fn(entry.Session)
	entry.Session.UpdatedAt = m.now()
	snapshot := entry.Session.Clone()
	entry.Unlock()

	m.archiveSession(ctx, snapshot)
	return nil
}

// entry resolves id from memory, falling back to the archive
func (m *Manager) entry(ctx context.Context, id string) (*memory.SessionEntry, error) {
	if id == "" {
		return nil, store.ErrSessionNotFound
	}
	if e, ok := m.repo.Get(id); ok {
		return e, nil
	}
	if m.archive == nil {
		return nil, store.ErrSessionNotFound
	}

	s, err := m.archive.LoadSession(ctx, id)
	if err != nil {
		m.logger.Warn("SessionManager", "Failed to load archived session", map[string]interface{}{"session_id": id, "error": err.Error()})
		return nil, store.ErrSessionNotFound
	}
	if s == nil {
		return nil, store.ErrSessionNotFound
	}

	entry := m.repo.Add(id, memory.NewSessionEntry(s))
	m.metrics.SetActiveSessions(m.repo.Count())
	m.logger.Info("SessionManager", "Session restored from archive", map[string]interface{}{"session_id": id, "turns": len(s.History)})
	return entry, nil
}

func (m *Manager) archiveSession(ctx context.Context, s *store.Session) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SaveSession(ctx, s); err != nil {
		m.logger.Warn("SessionManager", "Failed to archive session", map[string]interface{}{"session_id": s.ID, "error": err.Error()})
	}
}
