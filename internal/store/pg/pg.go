// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package pg

import (
	"context"
	"hash/fnv"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/lib/pq"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// Store implements store.Store on top of a gorp.DbMap, in the idiom of the
// teacher's internal/db + internal/collector pairing: read queries are raw
// SQL built with sqlext.SimplifyWhitespace, writes inside a transaction are
// raw SQL run through the gorp.Transaction's Exec.
type Store struct {
	dbMap *gorp.DbMap
}

// New wraps an already-migrated gorp.DbMap.
func New(dbMap *gorp.DbMap) *Store {
	return &Store{dbMap: dbMap}
}

var selectPeriodQuery = sqlext.SimplifyWhitespace(`
	SELECT id, start_date, end_date, is_active FROM scheduling_periods WHERE id = $1
`)

// LoadPeriod implements store.Store.
func (s *Store) LoadPeriod(ctx context.Context, periodID core.PeriodID) (core.SchedulingPeriod, error) {
	var row struct {
		ID        string    `db:"id"`
		StartDate core.Date `db:"start_date"`
		EndDate   core.Date `db:"end_date"`
		IsActive  bool      `db:"is_active"`
	}
	err := s.dbMap.WithContext(ctx).SelectOne(&row, selectPeriodQuery, string(periodID))
	if err != nil {
		return core.SchedulingPeriod{}, wrapPgErr(err)
	}
	return core.SchedulingPeriod{
		ID:        core.PeriodID(row.ID),
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
		IsActive:  row.IsActive,
	}, nil
}

// LoadEntities implements store.Store. It issues one query per entity kind
// and assembles the result, the same shape as the teacher's
// Context-equivalent bulk loaders in internal/collector.
func (s *Store) LoadEntities(ctx context.Context, period core.SchedulingPeriod) (store.Entities, error) {
	db := s.dbMap.WithContext(ctx)
	var ents store.Entities

	if _, err := db.Select(&ents.HealthSystems, `SELECT id, name FROM health_systems`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.Sites, `SELECT id, name, health_system_id FROM sites`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.Clerkships, `SELECT id, name, type, required_days, specialty FROM clerkships`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.Electives, `SELECT id, parent_clerkship_id, minimum_days, specialty, is_required FROM electives`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.Students, `SELECT id, name FROM students`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.Preceptors, `SELECT id, name, specialty, health_system_id, max_students, is_global_fallback_only FROM preceptors`); err != nil {
		return ents, wrapPgErr(err)
	}
	if _, err := db.Select(&ents.CapacityRules, `SELECT preceptor_id, clerkship_id, requirement_type, max_per_day, max_per_year, max_per_block FROM capacity_rules`); err != nil {
		return ents, wrapPgErr(err)
	}
	availQuery := sqlext.SimplifyWhitespace(`
		SELECT preceptor_id, site_id, date, is_available FROM availabilities
		WHERE date BETWEEN $1 AND $2
	`)
	if _, err := db.Select(&ents.Availability, availQuery, period.StartDate, period.EndDate); err != nil {
		return ents, wrapPgErr(err)
	}
	blackoutQuery := sqlext.SimplifyWhitespace(`
		SELECT date, reason FROM blackout_dates WHERE date BETWEEN $1 AND $2
	`)
	if _, err := db.Select(&ents.Blackouts, blackoutQuery, period.StartDate, period.EndDate); err != nil {
		return ents, wrapPgErr(err)
	}

	teams, err := loadTeams(db)
	if err != nil {
		return ents, err
	}
	ents.Teams = teams

	students, err := attachOnboardings(db, ents.Students)
	if err != nil {
		return ents, err
	}
	ents.Students = students

	preceptors, err := attachSites(db, ents.Preceptors)
	if err != nil {
		return ents, err
	}
	ents.Preceptors = preceptors

	electives, err := attachElectivePreceptors(db, ents.Electives)
	if err != nil {
		return ents, err
	}
	ents.Electives = electives

	enrollQuery := `SELECT student_id, clerkship_id, elective_id FROM enrollments`
	var enrollRows []struct {
		StudentID   string  `db:"student_id"`
		ClerkshipID string  `db:"clerkship_id"`
		ElectiveID  *string `db:"elective_id"`
	}
	if _, err := db.Select(&enrollRows, enrollQuery); err != nil {
		return ents, wrapPgErr(err)
	}
	for _, r := range enrollRows {
		e := core.Enrollment{StudentID: core.StudentID(r.StudentID), ClerkshipID: core.ClerkshipID(r.ClerkshipID)}
		if r.ElectiveID != nil {
			eid := core.ElectiveID(*r.ElectiveID)
			e.ElectiveID = &eid
		}
		ents.Enrollments = append(ents.Enrollments, e)
	}

	return ents, nil
}

var selectAssignmentsQuery = sqlext.SimplifyWhitespace(`
	SELECT id, student_id, preceptor_id, clerkship_id, site_id, elective_id, date, status, block_key, created_at, updated_at
	FROM assignments WHERE date BETWEEN $1 AND $2
`)

// LoadAssignments implements store.Store.
func (s *Store) LoadAssignments(ctx context.Context, start, end core.Date) ([]core.Assignment, error) {
	var rows []core.Assignment
	_, err := s.dbMap.WithContext(ctx).Select(&rows, selectAssignmentsQuery, start, end)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	return rows, nil
}

// Transaction implements store.Store.
func (s *Store) Transaction(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.dbMap.WithContext(ctx).Begin()
	if err != nil {
		return wrapPgErr(err)
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	if err := fn(&transaction{tx: tx}); err != nil {
		return err
	}
	if _, err := tx.Commit(); err != nil {
		return wrapPgErr(err)
	}
	return nil
}

// AcquirePeriodLock implements store.Store using a Postgres session-level
// advisory lock keyed by the hash of the period id, per spec.md §5.
func (s *Store) AcquirePeriodLock(ctx context.Context, periodID core.PeriodID) error {
	_, err := s.dbMap.WithContext(ctx).Exec(`SELECT pg_advisory_lock($1)`, periodLockKey(periodID))
	return wrapPgErr(err)
}

// ReleasePeriodLock implements store.Store.
func (s *Store) ReleasePeriodLock(ctx context.Context, periodID core.PeriodID) error {
	_, err := s.dbMap.WithContext(ctx).Exec(`SELECT pg_advisory_unlock($1)`, periodLockKey(periodID))
	return wrapPgErr(err)
}

func periodLockKey(periodID core.PeriodID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(periodID))
	return int64(h.Sum64()) //nolint:gosec // advisory lock keys are allowed to wrap
}

type transaction struct {
	tx *gorp.Transaction
}

func (t *transaction) DeleteAssignments(ids []core.AssignmentID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}
	_, err := t.tx.Exec(`DELETE FROM assignments WHERE id = ANY($1)`, pq.Array(strs))
	return wrapPgErr(err)
}

func (t *transaction) InsertAssignments(rows []core.Assignment) error {
	insertQuery := sqlext.SimplifyWhitespace(`
		INSERT INTO assignments (id, student_id, preceptor_id, clerkship_id, site_id, elective_id, date, status, block_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	for _, a := range rows {
		_, err := t.tx.Exec(insertQuery, a.ID, a.StudentID, a.PreceptorID, a.ClerkshipID, a.SiteID, a.ElectiveID, a.Date, a.Status, a.BlockKey, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return wrapPgErr(err)
		}
	}
	return nil
}

func (t *transaction) InsertAuditLog(row core.AuditLog) error {
	insertQuery := sqlext.SimplifyWhitespace(`
		INSERT INTO audit_logs (id, timestamp, strategy, cutoff_date, end_date, past_count, deleted_count, preserved_count, affected_count, generated_count, success, reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	_, err := t.tx.Exec(insertQuery, row.ID, row.Timestamp, row.Strategy, row.CutoffDate, row.EndDate,
		row.PastCount, row.DeletedCount, row.PreservedCount, row.AffectedCount, row.GeneratedCount, row.Success, row.Reason, row.Notes)
	return wrapPgErr(err)
}
