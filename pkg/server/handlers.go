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
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/stream-relay/pkg/mediahub"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// getPlaylist renders the aggregated catalog as an M3U playlist whose every
// entry points back at this relay.
func (s *Server) getPlaylist(c *gin.Context) {
	entries, err := s.hub.Sync(c.Request.Context(), false)
	if err != nil {
		utils.ErrorLog("Playlist request failed, catalog unavailable: %v", err)
		s.abortUpstreamError(c, err)
		return
	}
	if entries == nil {
		if snap := s.hub.Snapshot(); snap != nil {
			entries = snap.Entries
		}
	}

	base := s.cfg.BaseURL()
	var buffer bytes.Buffer
	buffer.WriteString("#EXTM3U\n")
	for _, entry := range entries {
		buffer.WriteString("#EXTINF:-1")
		buffer.WriteString(fmt.Sprintf(" tvg-id=%q", entry.ID))
		if entry.LogoURL != "" {
			buffer.WriteString(fmt.Sprintf(" tvg-logo=%q", entry.LogoURL))
		}
		group := entry.CountryGroup
		if entry.Genre != "" {
			group = strings.TrimPrefix(group+" "+entry.Genre, " ")
		}
		if group != "" {
			buffer.WriteString(fmt.Sprintf(" group-title=%q", group))
		}
		name := entry.CleanName
		if entry.Quality != "" {
			name += " [" + entry.Quality + "]"
		}
		buffer.WriteString(fmt.Sprintf(", %s\n%s/channel/%s\n", name, base, entry.ID))
	}

	c.Header("Content-Type", "application/x-mpegurl")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, s.cfg.M3UFileName))
	c.String(http.StatusOK, buffer.String())
}

// getChannel resolves a catalog entry into a live stream URL and serves its
// rewritten manifest. Custom-source entries already carry a direct URL and
// skip resolution.
func (s *Server) getChannel(c *gin.Context) {
	id := c.Param("id")
	snap := s.hub.Snapshot()
	if snap == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	entry, ok := snap.Lookup(id)
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	streamURL := entry.PlaybackURL
	if entry.Source == "mediahubmx" {
		resolved, err := s.hub.Resolve(c.Request.Context(), entry.PlaybackURL)
		if err != nil {
			utils.ErrorLog("Channel %s resolution failed: %v", id, err)
			s.abortUpstreamError(c, err)
			return
		}
		streamURL = resolved.URL
	}

	s.relay.Manifest(c, streamURL)
}

// getManifest relays an arbitrary upstream manifest. The url parameter must
// be an absolute http(s) URL.
func (s *Server) getManifest(c *gin.Context) {
	rawURL, ok := s.upstreamURL(c)
	if !ok {
		return
	}
	s.relay.Manifest(c, rawURL)
}

// getSegment relays one media segment.
func (s *Server) getSegment(c *gin.Context) {
	rawURL, ok := s.upstreamURL(c)
	if !ok {
		return
	}
	s.relay.Segment(c, rawURL)
}

// getStalkerStream creates a portal link for the given channel and serves
// its manifest. The cmd query parameter overrides the default channel
// command built from the id.
func (s *Server) getStalkerStream(c *gin.Context) {
	cmd := c.Query("cmd")
	if cmd == "" {
		cmd = fmt.Sprintf("ffmpeg http://localhost/ch/%s", c.Param("id"))
	}

	streamURL, err := s.portal.GetStreamURL(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorLog("Portal link creation failed for %s: %v", c.Param("id"), err)
		c.AbortWithStatus(http.StatusBadGateway)
		return
	}

	s.relay.Manifest(c, streamURL)
}

// upstreamURL validates the url query parameter of relay endpoints.
func (s *Server) upstreamURL(c *gin.Context) (string, bool) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return "", false
	}
	return rawURL, true
}

// abortUpstreamError maps upstream protocol failures onto HTTP statuses: no
// signature at all means we are down (503), an unresolvable channel means
// the upstream let us down (502).
func (s *Server) abortUpstreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mediahub.ErrNoToken):
		c.AbortWithStatus(http.StatusServiceUnavailable)
	case errors.Is(err, mediahub.ErrUnresolvable):
		c.AbortWithStatus(http.StatusBadGateway)
	default:
		c.AbortWithStatus(http.StatusBadGateway)
	}
}
