package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/internal/redact"
	"pkt.systems/pslog"
)

// MemoryStore keeps mappings in process. Capacity is advisory: crossing it logs,
// it never rejects a write.
type MemoryStore struct {
	mu         sync.RWMutex
	userTokens map[string]string
	tokenUsers map[string]string
	metadata   map[string]*Metadata

	maxEntries      int
	warnFraction    float64
	warnedHighWater bool
	warnedCapacity  bool

	now     func() time.Time
	logger  pslog.Logger
	metrics *metrics.Metrics
}

// NewMemoryStore creates an in-process token store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		userTokens:   map[string]string{},
		tokenUsers:   map[string]string{},
		metadata:     map[string]*Metadata{},
		maxEntries:   o.maxEntries,
		warnFraction: o.warnFraction,
		now:          o.now,
		logger:       logging.Subsystem(o.logger, "tokenstore", "memory"),
		metrics:      o.metrics,
	}
}

func (m *MemoryStore) SetUserToken(_ context.Context, subject, token string, ttl time.Duration) error {
	if subject == "" || token == "" {
		return fmt.Errorf("tokenstore: subject and token are required")
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if previous, ok := m.userTokens[subject]; ok && previous != token {
		delete(m.tokenUsers, previous)
		delete(m.metadata, previous)
	}
	if owner, ok := m.tokenUsers[token]; ok && owner != subject && m.userTokens[owner] == token {
		delete(m.userTokens, owner)
	}
	m.userTokens[subject] = token
	m.tokenUsers[token] = subject
	m.metadata[token] = &Metadata{Subject: subject, CreatedAt: now, ExpiresAt: now.Add(effectiveTTL(ttl))}
	m.emitUsageLocked()
	m.logger.Debug("tokenstore.memory.set", "subject", subject, "token", redact.Token(token))
	return nil
}

func (m *MemoryStore) GetUserToken(_ context.Context, subject string) (string, bool) {
	now := m.now()
	m.mu.RLock()
	token, ok := m.userTokens[subject]
	meta := m.metadata[token]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if meta == nil || meta.expired(now) {
		m.expire(token, now)
		return "", false
	}
	return token, true
}

func (m *MemoryStore) RemoveUserToken(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.userTokens[subject]
	if !ok {
		return nil
	}
	delete(m.userTokens, subject)
	if m.tokenUsers[token] == subject {
		delete(m.tokenUsers, token)
		delete(m.metadata, token)
	}
	m.emitUsageLocked()
	return nil
}

func (m *MemoryStore) FindSubjectByToken(_ context.Context, token string) (string, bool) {
	now := m.now()
	m.mu.RLock()
	subject, ok := m.tokenUsers[token]
	current := m.userTokens[subject]
	meta := m.metadata[token]
	m.mu.RUnlock()
	if !ok || current != token {
		return "", false
	}
	if meta == nil || meta.expired(now) {
		m.expire(token, now)
		return "", false
	}
	return subject, true
}

func (m *MemoryStore) AllSubjects(_ context.Context) []string {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]string, 0, len(m.userTokens))
	for subject, token := range m.userTokens {
		if meta := m.metadata[token]; meta != nil && !meta.expired(now) {
			ret = append(ret, subject)
		}
	}
	sort.Strings(ret)
	return ret
}

// CleanupExpired snapshots expired candidates under a read lock, then removes
// each one only if it is still expired under the write lock.
func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.RLock()
	var candidates []string
	for token, meta := range m.metadata {
		if meta.expired(now) {
			candidates = append(candidates, token)
		}
	}
	m.mu.RUnlock()
	if len(candidates) == 0 {
		return 0, nil
	}
	removed := 0
	m.mu.Lock()
	for _, token := range candidates {
		if m.removeIfExpiredLocked(token, now) {
			removed++
		}
	}
	m.emitUsageLocked()
	m.mu.Unlock()
	if removed > 0 {
		m.logger.Info("tokenstore.memory.cleanup", "removed", removed)
	}
	return removed, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of subjects currently mapped, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userTokens)
}

func (m *MemoryStore) expire(token string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeIfExpiredLocked(token, now) {
		m.emitUsageLocked()
	}
}

func (m *MemoryStore) removeIfExpiredLocked(token string, now time.Time) bool {
	meta, ok := m.metadata[token]
	if ok && !meta.expired(now) {
		return false
	}
	subject, owned := m.tokenUsers[token]
	if !ok && !owned {
		return false
	}
	delete(m.metadata, token)
	delete(m.tokenUsers, token)
	if owned && m.userTokens[subject] == token {
		delete(m.userTokens, subject)
	}
	return true
}

func (m *MemoryStore) emitUsageLocked() {
	count := len(m.userTokens)
	m.metrics.StoreEntries("memory", count)
	if m.maxEntries <= 0 {
		return
	}
	threshold := int(math.Ceil(float64(m.maxEntries) * m.warnFraction))
	if threshold < 1 {
		threshold = 1
	}
	if count < threshold {
		m.warnedHighWater = false
	}
	if count < m.maxEntries {
		m.warnedCapacity = false
	}
	if !m.warnedHighWater && count >= threshold && count < m.maxEntries {
		m.logger.Warn("tokenstore.memory.high_water", "entries", count, "max", m.maxEntries, "percent", int(m.warnFraction*100))
		m.warnedHighWater = true
	}
	if !m.warnedCapacity && count >= m.maxEntries {
		m.logger.Error("tokenstore.memory.capacity", "entries", count, "max", m.maxEntries, "hint", "configure REDIS_URL for larger deployments")
		m.warnedCapacity = true
	}
}
