package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process Backend. Tests use it, and so does the
// server when no remote store is configured.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string][]Row
	closed bool
	fail   error
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{tables: make(map[string][]Row)}
	for _, t := range Tables {
		m.tables[t] = nil
	}
	return m
}

// Name implements Backend
func (m *MemoryBackend) Name() string { return "memory" }

// Close implements Backend
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) check(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.tables[table]; !ok {
		return fmt.Errorf("unknown table: %s", table)
	}
	return nil
}

// ReadAll implements Backend
func (m *MemoryBackend) ReadAll(ctx context.Context, table string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, table); err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r))
	}
	return out, nil
}

// ReadWhere implements Backend
func (m *MemoryBackend) ReadWhere(ctx context.Context, table, column, value string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, table); err != nil {
		return nil, err
	}
	var out []Row
	for _, r := range m.tables[table] {
		if r.String(column) == value {
			out = append(out, copyRow(r))
		}
	}
	return out, nil
}

// Insert implements Backend
func (m *MemoryBackend) Insert(ctx context.Context, table string, rows ...Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, table); err != nil {
		return err
	}
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
	}
	return nil
}

// UpdateWhere implements Backend
func (m *MemoryBackend) UpdateWhere(ctx context.Context, table, column, value string, patch Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, table); err != nil {
		return err
	}
	matched := false
	for _, r := range m.tables[table] {
		if r.String(column) != value {
			continue
		}
		matched = true
		for col, val := range patch {
			r[col] = val
		}
	}
	if !matched {
		return ErrNoMatch
	}
	return nil
}

// SetFail makes every later call return err (nil restores service)
func (m *MemoryBackend) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Len returns the number of rows in a table
func (m *MemoryBackend) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
