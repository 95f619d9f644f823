// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package audit implements the Audit Logger of spec.md §4.6/§3: it renders
// a structured summary of one regeneration invocation to the application
// log and builds the core.AuditLog row persisted in the same transaction as
// the assignment changes it describes. Grounded on the teacher's
// audittools.Target pattern (internal/plugins' CADF event emission), where
// a typed event struct owns a Render-to-log-line method and is emitted
// alongside, never instead of, the structured log fields go-bits/logg
// already captures.
package audit

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/limes-clinsched/internal/clock"
	"github.com/sapcc/limes-clinsched/internal/core"
)

// RegenerationEvent is the structured record of one Regeneration Service
// invocation, analogous to the teacher's MaxQuotaEventTarget: a typed
// envelope around the fields that matter for later investigation, built
// once and both logged and persisted.
type RegenerationEvent struct {
	PeriodID       core.PeriodID
	Mode           string
	CutoffDate     core.Date
	EndDate        core.Date
	PastCount      int
	DeletedCount   int
	PreservedCount int
	AffectedCount  int
	GeneratedCount int
	Success        bool
	Reason         string
	Notes          string
	Bypassed       []string
}

// Render formats the event the way logg.Info's structured-message callers
// do throughout the teacher: one line, key facts inline, no structured
// encoder dependency for something this small.
func (e RegenerationEvent) Render() string {
	status := "succeeded"
	if !e.Success {
		status = "failed " + e.Reason
	}
	return fmt.Sprintf(
		"regeneration for period %s (mode %s) %s: cutoff=%s end=%s past=%d deleted=%d preserved=%d affected=%d generated=%d",
		e.PeriodID, e.Mode, status, e.CutoffDate, e.EndDate, e.PastCount, e.DeletedCount, e.PreservedCount, e.AffectedCount, e.GeneratedCount,
	)
}

// ToAuditLog converts the event into the core.AuditLog row a Store.Tx
// persists, with a fresh random uuid as id and a timestamp from the given
// Clock.
func (e RegenerationEvent) ToAuditLog(c clock.Clock) core.AuditLog {
	return core.AuditLog{
		ID:                  core.AuditLogID(uuid.NewString()),
		Timestamp:           c.Now(),
		Strategy:            e.Mode,
		CutoffDate:          e.CutoffDate,
		EndDate:             e.EndDate,
		PastCount:           e.PastCount,
		DeletedCount:        e.DeletedCount,
		PreservedCount:      e.PreservedCount,
		AffectedCount:       e.AffectedCount,
		GeneratedCount:      e.GeneratedCount,
		Success:             e.Success,
		Reason:              e.Reason,
		Notes:               e.Notes,
		BypassedConstraints: e.Bypassed,
	}
}

// Log emits the event to the application log at Info (success) or Error
// (failure), matching the teacher's convention of routing a failed
// operation's summary through logg.Error while routine completions go
// through logg.Info.
func Log(e RegenerationEvent) {
	if e.Success {
		logg.Info("%s", e.Render())
	} else {
		logg.Error("%s", e.Render())
	}
}
