// Package session holds live consultations in memory.
//
// Sessions live in a sharded table: a shard lock guards membership and a
// per-session lock serializes turns, so independent consultations never wait
// on each other.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"

	"github.com/ashureev/campaign-consult/internal/domain"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/metrics"
)

const shardCount = 32

// IDPrefix starts every consultation id.
const IDPrefix = "consultation_"

// Defaults for Config.
const (
	DefaultTTL                = 30 * time.Minute
	DefaultCompletedRetention = 5 * time.Minute
	DefaultMaxSessions        = 100
)

// EvictReason says why a session left the table.
type EvictReason string

// Eviction reasons.
const (
	EvictExpired   EvictReason = "expired"
	EvictCompleted EvictReason = "completed"
	EvictCancelled EvictReason = "cancelled"
)

// EvictHook is called after a session is removed. It must not call back into
// the manager for the same session.
type EvictHook func(id string, reason EvictReason)

// Client is the opaque context of whoever started a consultation.
type Client struct {
	ID        string `json:"client_id,omitempty"`
	RemoteIP  string `json:"remote_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Channel   string `json:"channel,omitempty"` // http, ws, cli, mcp
}

// Meta is bookkeeping about a session used for expiry and analytics.
type Meta struct {
	Client       Client       `json:"client"`
	CreatedAt    time.Time    `json:"created_at"`
	LastAccessed time.Time    `json:"last_accessed"`
	CompletedAt  time.Time    `json:"completed_at,omitempty"`
	TurnCount    int          `json:"turn_count"`
	Completion   float64      `json:"completion_percentage"`
	Stage        domain.Stage `json:"stage"`
}

// Config configures a Manager.
type Config struct {
	TTL                time.Duration
	CompletedRetention time.Duration
	MaxSessions        int
	MaxQuestions       int

	// Progress computes the completion fraction stored in Meta.
	Progress func(*domain.Session) float64
	Clock    func() time.Time
	Metrics  *metrics.Metrics
}

type entry struct {
	mu      sync.Mutex
	session *domain.Session
	meta    Meta

	snapshot     atomic.Pointer[Meta]
	lastAccessed atomic.Int64
	removed      atomic.Bool
}

func (e *entry) touch(now time.Time) {
	e.lastAccessed.Store(now.UnixNano())
	e.meta.LastAccessed = now
}

// publish refreshes the lock-free copy of meta. Callers hold e.mu.
func (e *entry) publish() {
	m := e.meta
	e.snapshot.Store(&m)
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Manager is the in-memory session table.
type Manager struct {
	cfg    Config
	shards [shardCount]*shard

	active    atomic.Int64
	created   atomic.Int64
	evicted   atomic.Int64
	completed atomic.Int64

	hooksMu sync.RWMutex
	hooks   []EvictHook
}

// NewManager creates a manager; zero config values get defaults.
func NewManager(cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = DefaultCompletedRetention
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = domain.DefaultMaxQuestions
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	m := &Manager{cfg: cfg}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return m
}

// OnEvict registers a hook called whenever a session is removed.
func (m *Manager) OnEvict(h EvictHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, h)
}

func (m *Manager) shardFor(id string) *shard {
	return m.shards[xxhash.Sum64String(id)%shardCount]
}

// NewID returns a fresh consultation id.
func NewID() string {
	return IDPrefix + strings.ToLower(ulid.Make().String())
}

// Create stores a new INITIAL session and returns its id.
func (m *Manager) Create(userInput string, client Client) (string, error) {
	for {
		n := m.active.Load()
		if n >= int64(m.cfg.MaxSessions) {
			return "", apperrors.NewTooManySessions(m.cfg.MaxSessions)
		}
		if m.active.CompareAndSwap(n, n+1) {
			break
		}
	}

	now := m.cfg.Clock()
	id := NewID()
	e := &entry{
		session: domain.NewSession(id, userInput, m.cfg.MaxQuestions, now),
		meta: Meta{
			Client:    client,
			CreatedAt: now,
			Stage:     domain.StageInitial,
		},
	}
	e.touch(now)
	e.meta.Completion = m.progress(e.session)
	e.publish()

	sh := m.shardFor(id)
	sh.mu.Lock()
	sh.entries[id] = e
	sh.mu.Unlock()

	m.created.Add(1)
	m.cfg.Metrics.SessionCreated()
	return id, nil
}

func (m *Manager) progress(s *domain.Session) float64 {
	if m.cfg.Progress == nil {
		return 0
	}
	return m.cfg.Progress(s)
}

func (m *Manager) lookup(id string) (*entry, bool) {
	sh := m.shardFor(id)
	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	return e, ok
}

// expiry returns why e should be evicted at now, or "" if it should stay.
// Callers hold e.mu.
func (m *Manager) expiry(e *entry, now time.Time) EvictReason {
	if !e.meta.CompletedAt.IsZero() && now.Sub(e.meta.CompletedAt) >= m.cfg.CompletedRetention {
		return EvictCompleted
	}
	if now.Sub(time.Unix(0, e.lastAccessed.Load())) >= m.cfg.TTL {
		return EvictExpired
	}
	return ""
}

// remove deletes e from its shard. Callers hold e.mu; hooks run after it is released.
func (m *Manager) remove(id string, e *entry) bool {
	if e.removed.Swap(true) {
		return false
	}
	sh := m.shardFor(id)
	sh.mu.Lock()
	if cur, ok := sh.entries[id]; ok && cur == e {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()
	m.active.Add(-1)
	m.evicted.Add(1)
	return true
}

func (m *Manager) notify(id string, reason EvictReason) {
	m.cfg.Metrics.SessionEvicted(string(reason))
	m.hooksMu.RLock()
	hooks := append([]EvictHook(nil), m.hooks...)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		h(id, reason)
	}
}

// acquire locks the live entry for id, evicting it first if it has expired.
func (m *Manager) acquire(id string) (*entry, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, apperrors.NewNotFound(id)
	}
	e.mu.Lock()
	if e.removed.Load() {
		e.mu.Unlock()
		return nil, apperrors.NewNotFound(id)
	}
	if reason := m.expiry(e, m.cfg.Clock()); reason != "" {
		removed := m.remove(id, e)
		e.mu.Unlock()
		if removed {
			m.notify(id, reason)
		}
		return nil, apperrors.NewNotFound(id)
	}
	return e, nil
}

// Get returns a deep copy of the session.
func (m *Manager) Get(id string) (*domain.Session, error) {
	e, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	e.touch(m.cfg.Clock())
	e.publish()
	return e.session.Clone(), nil
}

// Meta returns the bookkeeping record of a session.
func (m *Manager) Meta(id string) (Meta, error) {
	e, err := m.acquire(id)
	if err != nil {
		return Meta{}, err
	}
	defer e.mu.Unlock()
	return e.meta, nil
}

// Update replaces the stored session state.
func (m *Manager) Update(id string, s *domain.Session) error {
	if s == nil || s.ID != id {
		return apperrors.NewInvalidRequest("session id mismatch")
	}
	e, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.session = s.Clone()
	m.refresh(e)
	return nil
}

// WithSession runs fn against the live session while holding its lock.
// Changes fn makes are kept even if it returns an error.
func (m *Manager) WithSession(ctx context.Context, id string, fn func(*domain.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	defer m.refresh(e)
	return fn(e.session)
}

// refresh updates meta after a change. Callers hold e.mu.
func (m *Manager) refresh(e *entry) {
	e.touch(m.cfg.Clock())
	e.meta.Stage = e.session.Stage
	e.meta.TurnCount = len(e.session.Answered())
	e.meta.Completion = m.progress(e.session)
	e.publish()
}

// Complete marks a session as finished; it is evicted after the completed
// retention period. Completing twice is a no-op.
func (m *Manager) Complete(id string) error {
	e, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.meta.CompletedAt.IsZero() {
		return nil
	}
	now := m.cfg.Clock()
	if !e.session.Stage.IsTerminal() {
		e.session.SetStage(domain.StageCompleted, "complete", now)
	}
	e.meta.CompletedAt = now
	m.completed.Add(1)
	m.refresh(e)
	return nil
}

// Delete removes a session immediately.
func (m *Manager) Delete(id string) error {
	e, err := m.acquire(id)
	if err != nil {
		return err
	}
	removed := m.remove(id, e)
	e.mu.Unlock()
	if removed {
		m.notify(id, EvictCancelled)
	}
	return nil
}

// Sweep evicts expired sessions and returns how many it removed. Sessions
// busy with a turn are skipped until the next sweep.
func (m *Manager) Sweep() int {
	type evicted struct {
		id     string
		reason EvictReason
	}
	var gone []evicted
	now := m.cfg.Clock()

	for _, sh := range m.shards {
		sh.mu.RLock()
		ids := make([]string, 0, len(sh.entries))
		entries := make([]*entry, 0, len(sh.entries))
		for id, e := range sh.entries {
			ids = append(ids, id)
			entries = append(entries, e)
		}
		sh.mu.RUnlock()

		for i, e := range entries {
			if !e.mu.TryLock() {
				continue
			}
			if reason := m.expiry(e, now); reason != "" && m.remove(ids[i], e) {
				gone = append(gone, evicted{ids[i], reason})
			}
			e.mu.Unlock()
		}
	}

	for _, g := range gone {
		m.notify(g.id, g.reason)
	}
	return len(gone)
}

// Len returns the number of sessions in memory.
func (m *Manager) Len() int {
	return int(m.active.Load())
}

func (m *Manager) snapshots() []Meta {
	var out []Meta
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if snap := e.snapshot.Load(); snap != nil {
				out = append(out, *snap)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}
