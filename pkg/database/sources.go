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
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// GetEnabledCustomSources returns the custom playlist sources that should be
// merged into the catalog.
func (m *DBManager) GetEnabledCustomSources() ([]types.CustomSource, error) {
	rows, err := m.db.Query(`SELECT id, url, enabled FROM custom_sources WHERE enabled = TRUE ORDER BY url`)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}
	defer rows.Close()

	var sources []types.CustomSource
	for rows.Next() {
		var src types.CustomSource
		if err := rows.Scan(&src.ID, &src.URL, &src.Enabled); err != nil {
			return nil, utils.PrintErrorAndReturn(err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// UpsertCustomSource adds or updates one custom playlist source.
func (m *DBManager) UpsertCustomSource(src types.CustomSource) error {
	_, err := m.db.Exec(`
		INSERT INTO custom_sources (id, url, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET enabled = EXCLUDED.enabled`,
		src.ID, src.URL, src.Enabled)
	if err != nil {
		return utils.PrintErrorAndReturn(err)
	}
	return nil
}
