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

package database

import (
	"database/sql"

	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// GetProxyRecords returns every proxy record, active or not.
func (m *DBManager) GetProxyRecords() ([]types.ProxyRecord, error) {
	rows, err := m.db.Query(`
		SELECT id, url, host, port, success_rate, latency_ms, is_active, last_used_at, usage_count
		FROM proxy_records
		ORDER BY host, port`)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}
	defer rows.Close()

	var records []types.ProxyRecord
	for rows.Next() {
		var rec types.ProxyRecord
		var lastUsed sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Host, &rec.Port, &rec.SuccessRate,
			&rec.LatencyMs, &rec.IsActive, &lastUsed, &rec.UsageCount); err != nil {
			return nil, utils.PrintErrorAndReturn(err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			rec.LastUsedAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateProxyRecord upserts one proxy record.
func (m *DBManager) UpdateProxyRecord(rec types.ProxyRecord) error {
	var lastUsed sql.NullTime
	if rec.LastUsedAt != nil {
		lastUsed = sql.NullTime{Time: *rec.LastUsedAt, Valid: true}
	}

	_, err := m.db.Exec(`
		INSERT INTO proxy_records (id, url, host, port, success_rate, latency_ms, is_active, last_used_at, usage_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			success_rate = EXCLUDED.success_rate,
			latency_ms = EXCLUDED.latency_ms,
			is_active = EXCLUDED.is_active,
			last_used_at = EXCLUDED.last_used_at,
			usage_count = EXCLUDED.usage_count`,
		rec.ID, rec.URL, rec.Host, rec.Port, rec.SuccessRate,
		rec.LatencyMs, rec.IsActive, lastUsed, rec.UsageCount)
	if err != nil {
		return utils.PrintErrorAndReturn(err)
	}
	return nil
}

// AppendUsageLog records one proxy use.
func (m *DBManager) AppendUsageLog(usage types.ProxyUsage) error {
	_, err := m.db.Exec(`
		INSERT INTO proxy_usage_log (id, proxy_id, success, latency_ms, error_message, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.ID, usage.ProxyID, usage.Success, usage.LatencyMs,
		sql.NullString{String: usage.ErrorMessage, Valid: usage.ErrorMessage != ""}, usage.At)
	if err != nil {
		return utils.PrintErrorAndReturn(err)
	}
	return nil
}
