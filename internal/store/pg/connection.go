// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package pg is the Postgres-backed implementation of store.Store, grounded
// on the teacher's internal/db package: a gorp.DbMap over database/sql, a
// go-bits/easypg-managed migration set, and raw SQL built with
// go-bits/sqlext for the hot lookup queries.
package pg

import (
	"database/sql"

	gorp "github.com/go-gorp/gorp/v3"
	_ "github.com/lib/pq"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/osext"
)

// Configuration returns the easypg.Configuration the caller's Init needs.
func Configuration() easypg.Configuration {
	return easypg.Configuration{Migrations: sqlMigrations}
}

// Connect opens and migrates the database connection, following the
// teacher's db.Init: connection parameters come from the environment, not
// from a config file, since this core has no config surface of its own
// beyond ResolvedConfig (see SPEC_FULL.md §9.3).
func Connect() (*sql.DB, error) {
	dbURL, err := easypg.URLFrom(easypg.URLParts{
		HostName:     osext.GetenvOrDefault("CLINSCHED_DB_HOSTNAME", "localhost"),
		Port:         osext.GetenvOrDefault("CLINSCHED_DB_PORT", "5432"),
		UserName:     osext.GetenvOrDefault("CLINSCHED_DB_USERNAME", "postgres"),
		Password:     osext.GetenvOrDefault("CLINSCHED_DB_PASSWORD", ""),
		DatabaseName: osext.GetenvOrDefault("CLINSCHED_DB_NAME", "clinsched"),
	})
	if err != nil {
		return nil, err
	}
	return easypg.Connect(dbURL, Configuration())
}

// NewDbMap wraps a *sql.DB into a gorp.DbMap using the Postgres dialect, the
// way the teacher's db.InitORM does.
func NewDbMap(dbConn *sql.DB) *gorp.DbMap {
	dbConn.SetMaxOpenConns(16)
	dbMap := &gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}
	return dbMap
}
