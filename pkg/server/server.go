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

// Package server wires every component together and exposes the HTTP
// surface: the aggregated playlist, per-channel entry points and the
// manifest/segment relay endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lucasduport/stream-relay/pkg/config"
	"github.com/lucasduport/stream-relay/pkg/database"
	"github.com/lucasduport/stream-relay/pkg/mediahub"
	"github.com/lucasduport/stream-relay/pkg/proxypool"
	"github.com/lucasduport/stream-relay/pkg/relay"
	"github.com/lucasduport/stream-relay/pkg/session"
	"github.com/lucasduport/stream-relay/pkg/stalker"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// Server holds every wired component for one relay instance.
type Server struct {
	cfg *config.RelayConfig

	db     *database.DBManager
	store  *session.TokenStore
	hub    *mediahub.Client
	pool   *proxypool.Pool
	relay  *relay.Relay
	portal *stalker.Client
}

// NewServer initializes all components. The database, proxy pool and
// stalker portal are optional; everything else is mandatory.
func NewServer(cfg *config.RelayConfig) (*Server, error) {
	s := &Server{
		cfg:   cfg,
		store: session.NewTokenStore(),
	}

	if cfg.DatabaseEnabled {
		db, err := database.NewDBManager()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.db = db
	} else {
		utils.WarnLog("Bootstrap: no database configured, custom sources and proxy pool are DISABLED")
	}

	var sources mediahub.SourceLister
	if s.db != nil {
		sources = s.db
	}
	s.hub = mediahub.NewClient(cfg, s.store, sources)

	var egress relay.Egress
	if cfg.ProxyPoolEnabled && s.db != nil {
		s.pool = proxypool.NewPool(s.db)
		egress = s.pool
		utils.InfoLog("Bootstrap: proxy pool enabled with %d records", s.pool.Size())
	}
	s.relay = relay.NewRelay(cfg.BaseURL(), egress)

	if cfg.StalkerPortalURL != "" {
		s.portal = stalker.NewClient(cfg.StalkerPortalURL, cfg.StalkerMAC, cfg.StalkerTimezone)
		utils.InfoLog("Bootstrap: stalker portal client enabled for %s", cfg.StalkerPortalURL)
	}

	return s, nil
}

// Serve runs the initial catalog sync, starts the periodic resync and
// blocks serving HTTP.
func (s *Server) Serve() error {
	utils.InfoLog("[stream-relay] Server is starting...")

	ctx := context.Background()
	if _, err := s.hub.Sync(ctx, false); err != nil {
		// The playlist endpoint retries on demand, so startup survives this.
		utils.WarnLog("Initial catalog sync failed: %v", err)
	}
	go s.resyncLoop(ctx)

	router := gin.Default()
	router.Use(cors.Default())
	s.routes(router)

	utils.InfoLog("[stream-relay] Server is ready and listening on :%d", s.cfg.HostConfig.Port)
	return router.Run(fmt.Sprintf(":%d", s.cfg.HostConfig.Port))
}

// resyncLoop refreshes the catalog once per TTL so clients rarely hit an
// expired cache.
func (s *Server) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CatalogTTL)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := s.hub.Sync(ctx, false); err != nil {
			utils.WarnLog("Scheduled catalog sync failed: %v", err)
		}
	}
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/"+s.cfg.M3UFileName, s.getPlaylist)
	if s.cfg.M3UFileName != "playlist.m3u" {
		router.GET("/playlist.m3u", s.getPlaylist)
	}

	router.GET("/channel/:id", s.getChannel)
	router.GET("/manifest.m3u8", s.getManifest)
	router.GET("/segment", s.getSegment)

	if s.portal != nil {
		router.GET("/stalker/:id", s.getStalkerStream)
	}

	api := router.Group("/api")
	api.GET("/status", s.apiStatus)
	api.POST("/catalog/refresh", s.apiCatalogRefresh)
}
