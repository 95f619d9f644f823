// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package pg

// sqlMigrations follows the teacher's convention of keeping the full
// migration history inline as a map of filename to SQL, consumed by
// go-bits/easypg. Only the rollup for the current schema is kept here; a
// production deployment would accrete further migrations on top.
var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE scheduling_periods (
			id          TEXT       NOT NULL PRIMARY KEY,
			start_date  DATE       NOT NULL,
			end_date    DATE       NOT NULL,
			is_active   BOOLEAN    NOT NULL DEFAULT TRUE
		);

		CREATE TABLE health_systems (
			id    TEXT  NOT NULL PRIMARY KEY,
			name  TEXT  NOT NULL
		);

		CREATE TABLE sites (
			id                TEXT  NOT NULL PRIMARY KEY,
			name              TEXT  NOT NULL,
			health_system_id  TEXT  NOT NULL REFERENCES health_systems
		);

		CREATE TABLE clerkships (
			id            TEXT     NOT NULL PRIMARY KEY,
			name          TEXT     NOT NULL,
			type          TEXT     NOT NULL,
			required_days INTEGER  NOT NULL,
			specialty     TEXT     NOT NULL DEFAULT ''
		);

		CREATE TABLE electives (
			id                   TEXT     NOT NULL PRIMARY KEY,
			parent_clerkship_id  TEXT     NOT NULL REFERENCES clerkships,
			minimum_days         INTEGER  NOT NULL,
			specialty            TEXT     NOT NULL DEFAULT '',
			is_required          BOOLEAN  NOT NULL DEFAULT FALSE
		);

		CREATE TABLE elective_allowed_preceptors (
			elective_id    TEXT  NOT NULL REFERENCES electives,
			preceptor_id   TEXT  NOT NULL,
			PRIMARY KEY (elective_id, preceptor_id)
		);

		CREATE TABLE students (
			id    TEXT  NOT NULL PRIMARY KEY,
			name  TEXT  NOT NULL
		);

		CREATE TABLE student_onboardings (
			student_id        TEXT  NOT NULL REFERENCES students,
			health_system_id  TEXT  NOT NULL REFERENCES health_systems,
			PRIMARY KEY (student_id, health_system_id)
		);

		CREATE TABLE preceptors (
			id                      TEXT     NOT NULL PRIMARY KEY,
			name                    TEXT     NOT NULL,
			specialty               TEXT     NOT NULL DEFAULT '',
			health_system_id        TEXT     NOT NULL REFERENCES health_systems,
			max_students            INTEGER  NOT NULL DEFAULT 1,
			is_global_fallback_only BOOLEAN  NOT NULL DEFAULT FALSE
		);

		CREATE TABLE preceptor_sites (
			preceptor_id  TEXT  NOT NULL REFERENCES preceptors,
			site_id       TEXT  NOT NULL REFERENCES sites,
			PRIMARY KEY (preceptor_id, site_id)
		);

		CREATE TABLE teams (
			id                         TEXT     NOT NULL PRIMARY KEY,
			clerkship_id               TEXT     NOT NULL REFERENCES clerkships,
			require_same_health_system BOOLEAN  NOT NULL DEFAULT FALSE,
			require_same_site          BOOLEAN  NOT NULL DEFAULT FALSE,
			require_same_specialty     BOOLEAN  NOT NULL DEFAULT FALSE
		);

		CREATE TABLE team_sites (
			team_id  TEXT  NOT NULL REFERENCES teams,
			site_id  TEXT  NOT NULL REFERENCES sites,
			PRIMARY KEY (team_id, site_id)
		);

		CREATE TABLE team_members (
			team_id       TEXT     NOT NULL REFERENCES teams,
			preceptor_id  TEXT     NOT NULL REFERENCES preceptors,
			priority      INTEGER  NOT NULL,
			PRIMARY KEY (team_id, preceptor_id)
		);

		CREATE TABLE availabilities (
			preceptor_id  TEXT     NOT NULL REFERENCES preceptors,
			site_id       TEXT     NOT NULL REFERENCES sites,
			date          DATE     NOT NULL,
			is_available  BOOLEAN  NOT NULL,
			PRIMARY KEY (preceptor_id, site_id, date)
		);

		CREATE TABLE blackout_dates (
			date    DATE  NOT NULL PRIMARY KEY,
			reason  TEXT  NOT NULL DEFAULT ''
		);

		CREATE TABLE capacity_rules (
			id               BIGSERIAL  NOT NULL PRIMARY KEY,
			preceptor_id     TEXT       NOT NULL REFERENCES preceptors,
			clerkship_id     TEXT       REFERENCES clerkships,
			requirement_type TEXT,
			max_per_day      INTEGER,
			max_per_year     INTEGER,
			max_per_block    INTEGER
		);

		CREATE TABLE enrollments (
			student_id    TEXT  NOT NULL REFERENCES students,
			clerkship_id  TEXT  NOT NULL REFERENCES clerkships,
			elective_id   TEXT  REFERENCES electives,
			UNIQUE (student_id, clerkship_id, elective_id)
		);

		CREATE TABLE assignments (
			id            TEXT       NOT NULL PRIMARY KEY,
			student_id    TEXT       NOT NULL REFERENCES students,
			preceptor_id  TEXT       NOT NULL REFERENCES preceptors,
			clerkship_id  TEXT       NOT NULL REFERENCES clerkships,
			site_id       TEXT       REFERENCES sites,
			elective_id   TEXT       REFERENCES electives,
			date          DATE       NOT NULL,
			status        TEXT       NOT NULL,
			block_key     TEXT       NOT NULL DEFAULT '',
			created_at    TIMESTAMP  NOT NULL,
			updated_at    TIMESTAMP  NOT NULL,
			UNIQUE (student_id, date)
		);

		CREATE TABLE audit_logs (
			id              TEXT       NOT NULL PRIMARY KEY,
			timestamp       TIMESTAMP  NOT NULL,
			strategy        TEXT       NOT NULL,
			cutoff_date     DATE       NOT NULL,
			end_date        DATE       NOT NULL,
			past_count      INTEGER    NOT NULL,
			deleted_count   INTEGER    NOT NULL,
			preserved_count INTEGER    NOT NULL,
			affected_count  INTEGER    NOT NULL,
			generated_count INTEGER    NOT NULL,
			success         BOOLEAN    NOT NULL,
			reason          TEXT       NOT NULL DEFAULT '',
			notes           TEXT       NOT NULL DEFAULT ''
		);
	`,
	"001_initial.down.sql": `
		DROP TABLE audit_logs;
		DROP TABLE assignments;
		DROP TABLE enrollments;
		DROP TABLE capacity_rules;
		DROP TABLE blackout_dates;
		DROP TABLE availabilities;
		DROP TABLE team_members;
		DROP TABLE team_sites;
		DROP TABLE teams;
		DROP TABLE preceptor_sites;
		DROP TABLE preceptors;
		DROP TABLE student_onboardings;
		DROP TABLE students;
		DROP TABLE elective_allowed_preceptors;
		DROP TABLE electives;
		DROP TABLE clerkships;
		DROP TABLE sites;
		DROP TABLE health_systems;
		DROP TABLE scheduling_periods;
	`,
}
