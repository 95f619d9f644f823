// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package storetest is an in-memory stand-in for store.Store, grounded on
// the teacher's internal/test fixture packages (internal/test/discovery.go,
// internal/test/plugins/*) which let the rest of the core be exercised
// without a real database or backend service. It is used by the
// regeneration, editing and top-level clinsched tests in this module.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// MemStore is a mutex-protected, fully in-memory store.Store.
type MemStore struct {
	mu sync.Mutex

	Period      core.SchedulingPeriod
	Entities    store.Entities
	Assignments map[core.AssignmentID]core.Assignment
	AuditLogs   []core.AuditLog

	locked map[core.PeriodID]bool

	// FailTransactionsNTimes, when > 0, makes the next N calls to
	// Transaction fail with a transient error before succeeding, to
	// exercise internal/store.WithBackoff in tests.
	FailTransactionsNTimes int
}

// New builds an empty MemStore for the given period.
func New(period core.SchedulingPeriod) *MemStore {
	return &MemStore{
		Period:      period,
		Assignments: make(map[core.AssignmentID]core.Assignment),
		locked:      make(map[core.PeriodID]bool),
	}
}

// LoadPeriod implements store.Store.
func (m *MemStore) LoadPeriod(_ context.Context, periodID core.PeriodID) (core.SchedulingPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Period.ID != periodID {
		return core.SchedulingPeriod{}, fmt.Errorf("no such period: %s", periodID)
	}
	return m.Period, nil
}

// LoadEntities implements store.Store.
func (m *MemStore) LoadEntities(_ context.Context, _ core.SchedulingPeriod) (store.Entities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entities, nil
}

// LoadAssignments implements store.Store.
func (m *MemStore) LoadAssignments(_ context.Context, start, end core.Date) ([]core.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Assignment
	for _, a := range m.Assignments {
		if !a.Date.Before(start) && !a.Date.After(end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type transientErr string

func (e transientErr) Error() string   { return string(e) }
func (e transientErr) Transient() bool { return true }

// Transaction implements store.Store. It applies every mutation to a scratch
// copy first, only committing into m.Assignments/m.AuditLogs if fn returns
// nil, matching the all-or-nothing contract of spec.md §4.6/§6.
func (m *MemStore) Transaction(_ context.Context, fn func(store.Tx) error) error {
	m.mu.Lock()
	if m.FailTransactionsNTimes > 0 {
		m.FailTransactionsNTimes--
		m.mu.Unlock()
		return transientErr("simulated store contention")
	}
	m.mu.Unlock()

	tx := &memTx{base: m}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range tx.deletes {
		delete(m.Assignments, id)
	}
	for _, a := range tx.inserts {
		m.Assignments[a.ID] = a
	}
	m.AuditLogs = append(m.AuditLogs, tx.auditLogs...)
	return nil
}

// AcquirePeriodLock implements store.Store.
func (m *MemStore) AcquirePeriodLock(_ context.Context, periodID core.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[periodID] {
		return transientErr(fmt.Sprintf("period %s is already locked", periodID))
	}
	m.locked[periodID] = true
	return nil
}

// ReleasePeriodLock implements store.Store.
func (m *MemStore) ReleasePeriodLock(_ context.Context, periodID core.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, periodID)
	return nil
}

type memTx struct {
	base      *MemStore
	deletes   []core.AssignmentID
	inserts   []core.Assignment
	auditLogs []core.AuditLog
}

func (t *memTx) DeleteAssignments(ids []core.AssignmentID) error {
	t.deletes = append(t.deletes, ids...)
	return nil
}

func (t *memTx) InsertAssignments(rows []core.Assignment) error {
	t.inserts = append(t.inserts, rows...)
	return nil
}

func (t *memTx) InsertAuditLog(row core.AuditLog) error {
	t.auditLogs = append(t.auditLogs, row)
	return nil
}
