// Package store provides in-memory implementations of the engine's
// collaborator interfaces, for testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// MEMORY - In-memory DailyStore + MetricProvider + UserDirectory
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	daily   map[dailyKey]engine.DailyResult
	metrics map[metricKey]engine.MetricSet
	users   map[engine.VentureID][]engine.User
}

type dailyKey struct {
	VentureID engine.VentureID
	UserID    engine.UserID
	Date      string
}

type metricKey struct {
	VentureID engine.VentureID
	UserID    engine.UserID
	Date      string
}

func NewMemory() *Memory {
	return &Memory{
		daily:   make(map[dailyKey]engine.DailyResult),
		metrics: make(map[metricKey]engine.MetricSet),
		users:   make(map[engine.VentureID][]engine.User),
	}
}

// =============================================================================
// FIXTURE SETUP
// =============================================================================

// AddUser registers a user as a member of a venture.
func (m *Memory) AddUser(ventureID engine.VentureID, user engine.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[ventureID] = append(m.users[ventureID], user)
}

// SetMetrics sets one user's metric bucket for a venture/day.
func (m *Memory) SetMetrics(ventureID engine.VentureID, userID engine.UserID, date engine.Date, metrics engine.MetricSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metricKey{VentureID: ventureID, UserID: userID, Date: date.String()}] = metrics
}

// =============================================================================
// engine.MetricProvider / engine.DayMetricProvider
// =============================================================================

func (m *Memory) GetMetrics(_ context.Context, ventureID engine.VentureID, userID engine.UserID, date engine.Date) (engine.MetricSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bucket, ok := m.metrics[metricKey{VentureID: ventureID, UserID: userID, Date: date.String()}]; ok {
		return bucket, nil
	}
	return engine.MetricSet{}, nil
}

func (m *Memory) GetDayMetrics(_ context.Context, ventureID engine.VentureID, date engine.Date) (map[engine.UserID]engine.MetricSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := make(map[engine.UserID]engine.MetricSet)
	day := date.String()
	for k, bucket := range m.metrics {
		if k.VentureID == ventureID && k.Date == day {
			buckets[k.UserID] = bucket
		}
	}
	return buckets, nil
}

// =============================================================================
// engine.UserDirectory
// =============================================================================

func (m *Memory) VentureUsers(_ context.Context, ventureID engine.VentureID) ([]engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]engine.User, len(m.users[ventureID]))
	copy(users, m.users[ventureID])
	return users, nil
}

// =============================================================================
// engine.DailyStore
// =============================================================================

func (m *Memory) UpsertDailyResult(_ context.Context, result engine.DailyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(result)
	return nil
}

func (m *Memory) ReplaceVentureDay(_ context.Context, ventureID engine.VentureID, date engine.Date, results []engine.DailyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := date.String()
	for k := range m.daily {
		if k.VentureID == ventureID && k.Date == day {
			delete(m.daily, k)
		}
	}
	for _, r := range results {
		m.putLocked(r)
	}
	return nil
}

func (m *Memory) putLocked(result engine.DailyResult) {
	k := dailyKey{VentureID: result.VentureID, UserID: result.UserID, Date: result.Date.String()}
	m.daily[k] = result
}

func (m *Memory) LoadUserRange(_ context.Context, ventureID engine.VentureID, userID engine.UserID, from, to engine.Date) ([]engine.DailyResult, error) {
	return m.load(func(r engine.DailyResult) bool {
		return r.VentureID == ventureID && r.UserID == userID && inRange(r.Date, from, to)
	}), nil
}

func (m *Memory) LoadUserWindow(_ context.Context, userID engine.UserID, from, to engine.Date) ([]engine.DailyResult, error) {
	return m.load(func(r engine.DailyResult) bool {
		return r.UserID == userID && inRange(r.Date, from, to)
	}), nil
}

func (m *Memory) LoadVentureRange(_ context.Context, ventureID engine.VentureID, from, to engine.Date) ([]engine.DailyResult, error) {
	return m.load(func(r engine.DailyResult) bool {
		return r.VentureID == ventureID && inRange(r.Date, from, to)
	}), nil
}

func (m *Memory) load(match func(engine.DailyResult) bool) []engine.DailyResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []engine.DailyResult
	for _, r := range m.daily {
		if match(r) {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].Date.Equal(results[j].Date) {
			return results[i].Date.Before(results[j].Date)
		}
		return results[i].UserID < results[j].UserID
	})
	return results
}

func inRange(d, from, to engine.Date) bool {
	return d.AfterOrEqual(from) && d.BeforeOrEqual(to)
}
