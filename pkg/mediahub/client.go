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

// Package mediahub implements the MediaHubMX upstream protocol: the
// device-fingerprint handshake, cursor-paginated catalog synchronization and
// channel resolution. One parameterized client covers the whole family.
package mediahub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/lucasduport/stream-relay/pkg/config"
	"github.com/lucasduport/stream-relay/pkg/session"
	"github.com/lucasduport/stream-relay/pkg/types"
)

// Terminal errors surfaced to callers once all local recovery is exhausted.
var (
	// ErrNoToken means no signature could be obtained and no cached one
	// exists to degrade to.
	ErrNoToken = errors.New("mediahub: no signature available")
	// ErrUnresolvable means the resolve retry budget is exhausted.
	ErrUnresolvable = errors.New("mediahub: channel unresolvable")
)

const (
	handshakeTimeout = 15 * time.Second
	requestTimeout   = 10 * time.Second

	catalogID = "iptv"

	pageRetryLimit = 3
	// Every rateLimitEvery pages the sync loop sleeps for a second, success
	// or not, to avoid hammering the upstream.
	rateLimitEvery = 5
)

// SourceLister is the persistence contract for externally managed custom
// sources merged into the catalog.
type SourceLister interface {
	GetEnabledCustomSources() ([]types.CustomSource, error)
}

// Client talks to one MediaHubMX upstream family.
type Client struct {
	cfg   *config.RelayConfig
	store *session.TokenStore

	handshakeClient *http.Client
	httpClient      *http.Client

	sources SourceLister // optional

	mu   sync.RWMutex
	snap *types.CatalogSnapshot

	// sleep is swapped out in tests; production code sleeps for real.
	sleep func(time.Duration)
}

// NewClient creates a client bound to the given token store. sources may be
// nil when custom-source merging is disabled.
func NewClient(cfg *config.RelayConfig, store *session.TokenStore, sources SourceLister) *Client {
	return &Client{
		cfg:             cfg,
		store:           store,
		handshakeClient: &http.Client{Timeout: handshakeTimeout},
		httpClient:      &http.Client{Timeout: requestTimeout},
		sources:         sources,
		sleep:           time.Sleep,
	}
}

// Snapshot returns the current catalog snapshot, which may be nil before the
// first successful sync.
func (c *Client) Snapshot() *types.CatalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// replaceSnapshot swaps in a freshly built snapshot. Last writer wins.
func (c *Client) replaceSnapshot(entries []types.CatalogEntry) *types.CatalogSnapshot {
	snap := types.NewCatalogSnapshot(entries)
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return snap
}
