// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package core

import "time"

// AuditLog is a structured record of one regeneration event, per spec.md §3.
type AuditLog struct {
	ID                  AuditLogID   `db:"id"`
	Timestamp           time.Time    `db:"timestamp"`
	Strategy            string       `db:"strategy"`
	CutoffDate          Date         `db:"cutoff_date"`
	EndDate             Date         `db:"end_date"`
	PastCount           int          `db:"past_count"`
	DeletedCount        int          `db:"deleted_count"`
	PreservedCount      int          `db:"preserved_count"`
	AffectedCount       int          `db:"affected_count"`
	GeneratedCount      int          `db:"generated_count"`
	Success             bool         `db:"success"`
	Reason              string       `db:"reason"`
	Notes               string       `db:"notes"`
	BypassedConstraints []string     `db:"-"`
}
