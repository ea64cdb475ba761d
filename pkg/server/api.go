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

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// apiStatus reports the health of each component: catalog freshness,
// signature age, pool size and which optional components are wired.
func (s *Server) apiStatus(c *gin.Context) {
	status := gin.H{
		"database":       s.db != nil,
		"stalker_portal": s.portal != nil,
		"proxy_pool":     s.pool != nil,
	}

	if snap := s.hub.Snapshot(); snap != nil {
		status["catalog_entries"] = len(snap.Entries)
		status["catalog_age_seconds"] = int(time.Since(snap.FetchedAt).Seconds())
		status["catalog_expired"] = snap.IsExpired(s.cfg.CatalogTTL)
	} else {
		status["catalog_entries"] = 0
	}

	if sig, ok := s.store.Get(); ok {
		status["signature_age_seconds"] = int(sig.Age().Seconds())
		status["signature_expired"] = s.store.IsExpired(s.cfg.SignatureTTL)
	}

	if s.pool != nil {
		status["proxy_records"] = s.pool.Size()
	}

	c.JSON(http.StatusOK, types.APIResponse{Success: true, Data: status})
}

// apiCatalogRefresh forces a full catalog resync regardless of cache
// freshness.
func (s *Server) apiCatalogRefresh(c *gin.Context) {
	entries, err := s.hub.Sync(c.Request.Context(), true)
	if err != nil {
		utils.ErrorLog("Forced catalog refresh failed: %v", err)
		c.JSON(http.StatusBadGateway, types.APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Message: "catalog refreshed",
		Data:    gin.H{"entries": len(entries)},
	})
}
