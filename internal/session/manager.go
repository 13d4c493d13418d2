package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insightai/internal/domain"
)

const (
	collectionPrefix = "insightai_"
	collectionSuffix = "_docs"
)

// CollectionName derives the vector-store collection name for a session id.
// The derivation is injective and reversible via SessionIDFromCollection.
func CollectionName(sessionID string) string {
	return collectionPrefix + sessionID + collectionSuffix
}

// SessionIDFromCollection recovers the session id from a collection name.
func SessionIDFromCollection(name string) (string, bool) {
	if !strings.HasPrefix(name, collectionPrefix) || !strings.HasSuffix(name, collectionSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, collectionPrefix), collectionSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// CollectionStore is the slice of the vector store the manager needs.
type CollectionStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
}

type state int

const (
	stateActive state = iota
	stateDeleting
)

type entry struct {
	collection   string
	lastActivity time.Time
	state        state
}

// Config tunes the manager. Zero values fall back to production defaults;
// tests pass sub-second timeouts.
type Config struct {
	IdleTimeout time.Duration
	CallTimeout time.Duration
	Dimension   int
}

// Manager owns the session table: the mapping from session id to collection
// name, last-activity time and lifecycle state. A single mutex guards both
// the map structure and entry fields; remote vector-store calls always
// happen outside the lock, only the state transition bracketing them is
// locked. Operations on different sessions therefore never block on each
// other's network calls.
type Manager struct {
	store       CollectionStore
	log         *zap.Logger
	idleTimeout time.Duration
	callTimeout time.Duration
	dimension   int

	mu       sync.Mutex
	sessions map[string]*entry

	// sweepMu makes Sweep single-flight: an interval tick that fires while
	// the previous sweep is still deleting is skipped, not queued.
	sweepMu sync.Mutex
}

// NewManager creates a session manager over the given collection store.
func NewManager(store CollectionStore, log *zap.Logger, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:       store,
		log:         log,
		idleTimeout: cfg.IdleTimeout,
		callTimeout: cfg.CallTimeout,
		dimension:   cfg.Dimension,
		sessions:    make(map[string]*entry),
	}
}

// IdleTimeout reports the configured inactivity window, e.g. for the
// upload response's expires_in field.
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// Len reports the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Pending is an allocated session whose collection exists remotely but
// which is not yet registered. The holder either Activates it after
// populating the collection or Aborts it.
type Pending struct {
	ID         string
	Collection string
}

// Begin allocates a fresh session id, derives its collection name and
// creates the remote collection. Nothing is registered yet: a caller that
// still has to ingest content activates the session only once ingestion
// succeeded, so a failed or timed-out upload never leaves an ACTIVE
// session behind.
func (m *Manager) Begin(ctx context.Context) (Pending, error) {
	id := uuid.NewString()
	collection := CollectionName(id)

	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	if err := m.store.CreateCollection(cctx, collection, m.dimension); err != nil {
		return Pending{}, fmt.Errorf("create collection %s: %w", collection, err)
	}
	return Pending{ID: id, Collection: collection}, nil
}

// Activate registers a pending session as ACTIVE with a fresh activity
// timestamp. A colliding id would violate the injective naming invariant
// and is rejected.
func (m *Manager) Activate(p Pending) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[p.ID]; ok {
		return fmt.Errorf("session %s: %w", p.ID, domain.ErrCollectionExists)
	}
	m.sessions[p.ID] = &entry{
		collection:   p.Collection,
		lastActivity: time.Now(),
		state:        stateActive,
	}
	return nil
}

// Abort tears down a pending session that never became ACTIVE.
func (m *Manager) Abort(ctx context.Context, p Pending) {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	err := m.store.DeleteCollection(cctx, p.Collection)
	if err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
		m.log.Warn("failed to delete collection of aborted session",
			zap.String("session_id", p.ID), zap.Error(err))
	}
}

// Register allocates and immediately activates a session. On vector-store
// failure nothing is registered and the error propagates.
func (m *Manager) Register(ctx context.Context) (sessionID, collection string, err error) {
	p, err := m.Begin(ctx)
	if err != nil {
		return "", "", err
	}
	if err := m.Activate(p); err != nil {
		m.Abort(ctx, p)
		return "", "", err
	}
	return p.ID, p.Collection, nil
}

// Touch refreshes the activity timestamp of an ACTIVE session. Unknown or
// mid-deletion sessions are ignored: touch is a best-effort activity hint,
// not a validity check.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok || e.state != stateActive {
		return
	}
	if now := time.Now(); now.After(e.lastActivity) {
		e.lastActivity = now
	}
}

// Validate returns the collection name of an ACTIVE session, or
// ErrSessionExpired for anything else. Unknown ids and sessions caught
// mid-deletion are deliberately indistinguishable.
func (m *Manager) Validate(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok || e.state != stateActive {
		return "", domain.ErrSessionExpired
	}
	return e.collection, nil
}

// DeleteSession is the idempotent explicit teardown. The entry is removed
// whether or not the remote deletion succeeds: user-initiated deletion is
// best-effort cleanup, a failed remote call is logged but never blocks the
// user-visible result.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if e.state == stateDeleting {
		// A sweep is already tearing this session down remotely; dropping
		// the entry now keeps the user-facing result immediate.
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil
	}
	e.state = stateDeleting
	collection := e.collection
	m.mu.Unlock()

	cctx, cancel := m.callCtx(ctx)
	err := m.store.DeleteCollection(cctx, collection)
	cancel()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
		m.log.Warn("collection deletion failed during explicit teardown",
			zap.String("session_id", sessionID),
			zap.String("collection", collection),
			zap.Error(err))
	} else {
		m.log.Info("session deleted", zap.String("session_id", sessionID))
	}
	return nil
}

// Sweep evicts every ACTIVE session idle for longer than the idle timeout
// and returns how many were removed. Deletion failures are isolated per
// session: the entry reverts to ACTIVE and is retried on the next cycle,
// so no session is ever left stuck in DELETING.
func (m *Manager) Sweep(ctx context.Context) int {
	if !m.sweepMu.TryLock() {
		return 0
	}
	defer m.sweepMu.Unlock()

	type target struct {
		id         string
		collection string
	}
	now := time.Now()
	var idle []target

	m.mu.Lock()
	for id, e := range m.sessions {
		if e.state == stateActive && now.Sub(e.lastActivity) > m.idleTimeout {
			e.state = stateDeleting
			idle = append(idle, target{id: id, collection: e.collection})
		}
	}
	m.mu.Unlock()

	swept := 0
	for _, t := range idle {
		cctx, cancel := m.callCtx(ctx)
		err := m.store.DeleteCollection(cctx, t.collection)
		cancel()

		if err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
			m.mu.Lock()
			// The entry may have been removed by a concurrent explicit
			// delete; only revert it if it is still ours.
			if e, ok := m.sessions[t.id]; ok && e.state == stateDeleting {
				e.state = stateActive
			}
			m.mu.Unlock()
			m.log.Warn("idle sweep failed to delete collection, will retry",
				zap.String("session_id", t.id),
				zap.String("collection", t.collection),
				zap.Error(err))
			continue
		}

		m.mu.Lock()
		delete(m.sessions, t.id)
		m.mu.Unlock()
		swept++
		m.log.Info("evicted idle session",
			zap.String("session_id", t.id),
			zap.Duration("idle_timeout", m.idleTimeout))
	}
	return swept
}

func (m *Manager) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.callTimeout)
}
