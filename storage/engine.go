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
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/storage/log"
	"gorm.io/gorm"
)

// ModuleName is the name of the storage engine, also used as config key.
const ModuleName = "Storage"

const sqliteFileName = "sqlite.db"

var _ core.Engine = (*engine)(nil)
var _ core.Injectable = (*engine)(nil)
var _ core.Configurable = (*engine)(nil)
var _ core.Runnable = (*engine)(nil)
var _ core.Diagnosable = (*engine)(nil)

// Engine provides access to the databases of the issuer.
type Engine interface {
	core.Engine
	core.Runnable

	// GetSQLDatabase returns the SQL database. It is only available after Start.
	GetSQLDatabase() *gorm.DB
	// GetSessionDatabase returns the session database, used for short-lived single-use values.
	GetSessionDatabase() SessionDatabase
}

// New creates a new instance of the storage engine.
func New() Engine {
	return &engine{
		config: DefaultConfig(),
	}
}

type engine struct {
	config          Config
	datadir         string
	sqlDB           *gorm.DB
	sqlDialect      string
	sessionDatabase SessionDatabase
}

func (e *engine) Name() string {
	return ModuleName
}

func (e *engine) Config() interface{} {
	return &e.config
}

func (e *engine) Configure(config core.ServerConfig) error {
	e.datadir = config.Datadir
	if e.config.SQL.SlowQueryThreshold <= 0 {
		return errors.New("storage.sql.slowquerythreshold must be positive")
	}
	if e.config.Session.Redis.isConfigured() {
		if _, err := redisOptions(e.config.Session.Redis); err != nil {
			return err
		}
	}
	return nil
}

// Start opens the SQL database, applies the migrations and connects the session database.
func (e *engine) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := e.initSQLDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize SQL database: %w", err)
	}
	if e.config.Session.Redis.isConfigured() {
		client, err := createRedisClient(ctx, e.config.Session.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize session database: %w", err)
		}
		e.sessionDatabase = NewRedisSessionDatabase(client)
	} else {
		e.sessionDatabase = NewInMemorySessionDatabase()
	}
	return nil
}

func (e *engine) Shutdown() error {
	var errs []error
	if e.sessionDatabase != nil {
		e.sessionDatabase.Close()
	}
	if e.sqlDB != nil {
		underlying, err := e.sqlDB.DB()
		if err == nil {
			err = underlying.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("unable to close SQL database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *engine) GetSQLDatabase() *gorm.DB {
	return e.sqlDB
}

func (e *engine) GetSessionDatabase() SessionDatabase {
	return e.sessionDatabase
}

// Diagnostics reports the SQL dialect in use and the type of session store.
func (e *engine) Diagnostics() []core.DiagnosticResult {
	sessionStore := "memory"
	if e.config.Session.Redis.isConfigured() {
		sessionStore = "redis"
	}
	return []core.DiagnosticResult{
		core.GenericDiagnosticResult{Title: "sql_dialect", Outcome: e.sqlDialect},
		core.GenericDiagnosticResult{Title: "session_store", Outcome: sessionStore},
	}
}

func (e *engine) initSQLDatabase(ctx context.Context) error {
	connectionString := e.config.SQL.ConnectionString
	if connectionString == "" {
		connectionString = sqliteConnectionString(path.Join(e.datadir, sqliteFileName))
	}
	gormLogger := gormLogrusLogger{
		underlying:    log.Logger(),
		slowThreshold: e.config.SQL.SlowQueryThreshold,
	}
	db, dialect, err := openDatabase(connectionString, &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return err
	}
	e.sqlDB = db
	e.sqlDialect = string(dialect)
	log.Logger().Debugf("Opened %s database", dialect)
	return migrate(ctx, db, dialect)
}
