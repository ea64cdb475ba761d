/*
 * stream-relay is a project to aggregate live TV catalogs and relay HLS streams.
 * Copyright (C) 2025  Lucas Duport
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
 */

// Package database persists proxy records, their usage log and custom
// playlist sources in PostgreSQL.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// DBManager wraps the SQL connection and owns the schema.
type DBManager struct {
	db *sql.DB
}

// NewDBManager opens the connection, verifies it and creates missing tables.
// Connection settings come from the DB_* environment variables.
func NewDBManager() (*DBManager, error) {
	host := utils.GetEnvOrDefault("DB_HOST", "localhost")
	port := utils.GetEnvOrDefault("DB_PORT", "5432")
	dbName := utils.GetEnvOrDefault("DB_NAME", "streamrelay")
	user := utils.GetEnvOrDefault("DB_USER", "postgres")
	password := utils.GetEnvOrDefault("DB_PASSWORD", "")

	connStr := fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbName, user, password,
	)
	utils.DebugLog("Connecting to PostgreSQL: host=%s port=%s dbname=%s user=%s", host, port, dbName, user)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}

	manager := &DBManager{db: db}
	if err := manager.initSchema(); err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}

	utils.InfoLog("Database connection established")
	return manager, nil
}

// Close closes the underlying connection pool.
func (m *DBManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *DBManager) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS proxy_records (
			id VARCHAR(64) PRIMARY KEY,
			url TEXT NOT NULL,
			host VARCHAR(255) NOT NULL,
			port INTEGER NOT NULL,
			success_rate INTEGER NOT NULL DEFAULT 100,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_used_at TIMESTAMP,
			usage_count BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS proxy_usage_log (
			id VARCHAR(64) PRIMARY KEY,
			proxy_id VARCHAR(64) NOT NULL REFERENCES proxy_records(id) ON DELETE CASCADE,
			success BOOLEAN NOT NULL,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			error_message TEXT,
			used_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS custom_sources (
			id VARCHAR(64) PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_usage_proxy_id ON proxy_usage_log(proxy_id)`,
	}

	for _, stmt := range schema {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
