/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/nuts-foundation/ebsi-issuer/storage/log"
	nutssqlite "github.com/nuts-foundation/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed sql_migrations/*.sql
var sqlMigrationsFS embed.FS

const (
	postgresScheme = "postgres://"
	mysqlScheme    = "mysql://"
)

// sqliteConnectionString returns the connection string for an SQLite database file, with foreign keys enabled
// and a busy timeout so concurrent writers wait instead of failing.
func sqliteConnectionString(file string) string {
	return "file:" + file + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// openDatabase opens the database identified by the connection string and returns the goose dialect to migrate it with.
func openDatabase(connectionString string, config *gorm.Config) (*gorm.DB, goose.Dialect, error) {
	var dialector gorm.Dialector
	var dialect goose.Dialect
	var sqliteConn *sql.DB
	switch {
	case strings.HasPrefix(connectionString, postgresScheme) || strings.HasPrefix(connectionString, "postgresql://"):
		dialector = postgres.Open(connectionString)
		dialect = goose.DialectPostgres
	case strings.HasPrefix(connectionString, mysqlScheme):
		// go-sql-driver expects a DSN (user:pass@tcp(host:port)/db), not a URL
		dsn := strings.TrimPrefix(connectionString, mysqlScheme)
		if !strings.Contains(dsn, "parseTime") {
			dsn = appendQueryParam(dsn, "parseTime=true")
		}
		dialector = mysql.Open(dsn)
		dialect = goose.DialectMySQL
	default:
		var err error
		sqliteConn, err = sql.Open(nutssqlite.DriverName, connectionString)
		if err != nil {
			return nil, "", fmt.Errorf("unable to open SQLite database: %w", err)
		}
		// a single connection serializes writers, SQLite has no row-level locking
		sqliteConn.SetMaxOpenConns(1)
		dialector = &sqlite.Dialector{DriverName: nutssqlite.DriverName, Conn: sqliteConn}
		dialect = goose.DialectSQLite3
	}
	db, err := gorm.Open(dialector, config)
	if err != nil {
		if sqliteConn != nil {
			_ = sqliteConn.Close()
		}
		return nil, "", fmt.Errorf("unable to connect to %s database: %w", dialect, err)
	}
	return db, dialect, nil
}

func appendQueryParam(dsn string, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// migrate applies the embedded SQL migrations.
func migrate(ctx context.Context, db *gorm.DB, dialect goose.Dialect) error {
	underlying, err := db.DB()
	if err != nil {
		return err
	}
	migrations, err := fs.Sub(sqlMigrationsFS, "sql_migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, underlying, migrations)
	if err != nil {
		return fmt.Errorf("unable to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("unable to migrate database: %w", err)
	}
	for _, result := range results {
		log.Logger().Infof("Applied database migration %s (took %s)", result.Source.Path, result.Duration)
	}
	return nil
}
