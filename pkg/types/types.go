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

package types

import "time"

// Signature is the opaque per-session token the MediaHubMX upstream requires
// on catalog and resolve calls. One instance exists per upstream family;
// replacement is always a full swap, never a partial update.
type Signature struct {
	Value      string
	AcquiredAt time.Time
}

// IsZero reports whether the signature has never been set.
func (s Signature) IsZero() bool {
	return s.Value == ""
}

// Age returns how long ago the signature was acquired.
func (s Signature) Age() time.Duration {
	return time.Since(s.AcquiredAt)
}

// CatalogEntry is one normalized channel record. Entries are immutable once
// constructed; a sync produces a whole new list.
type CatalogEntry struct {
	ID           string `json:"id"`
	RawName      string `json:"raw_name"`
	CleanName    string `json:"name"`
	PlaybackURL  string `json:"playback_url"`
	LogoURL      string `json:"logo,omitempty"`
	CountryGroup string `json:"country,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Quality      string `json:"quality,omitempty"`
	// Source identifies the upstream family this entry came from:
	// "mediahubmx", "stalker" or "custom".
	Source string `json:"source"`
}

// CatalogSnapshot is the immutable result of one full catalog sync. The
// lookup maps are rebuilt with each snapshot; callers never observe a
// half-populated catalog.
type CatalogSnapshot struct {
	Entries   []CatalogEntry
	ByID      map[string]int    // entry ID -> index into Entries
	ByPlayURL map[string]string // playback URL -> entry ID
	FetchedAt time.Time
}

// NewCatalogSnapshot builds a snapshot with both lookup directions populated.
func NewCatalogSnapshot(entries []CatalogEntry) *CatalogSnapshot {
	snap := &CatalogSnapshot{
		Entries:   entries,
		ByID:      make(map[string]int, len(entries)),
		ByPlayURL: make(map[string]string, len(entries)),
		FetchedAt: time.Now(),
	}
	for i, e := range entries {
		snap.ByID[e.ID] = i
		snap.ByPlayURL[e.PlaybackURL] = e.ID
	}
	return snap
}

// Lookup returns the entry with the given ID.
func (s *CatalogSnapshot) Lookup(id string) (CatalogEntry, bool) {
	if s == nil {
		return CatalogEntry{}, false
	}
	i, ok := s.ByID[id]
	if !ok {
		return CatalogEntry{}, false
	}
	return s.Entries[i], true
}

// IsExpired reports whether the snapshot is older than the given TTL.
func (s *CatalogSnapshot) IsExpired(ttl time.Duration) bool {
	return s == nil || time.Since(s.FetchedAt) >= ttl
}

// ResolvedStream is the short-lived playable URL obtained from a resolve
// call. It is never cached beyond the relay session that requested it.
type ResolvedStream struct {
	URL        string
	ObtainedAt time.Time
}

// ProxyRecord is one scored outbound proxy. The core mutates SuccessRate,
// LatencyMs, IsActive, LastUsedAt and UsageCount; deletion and reactivation
// are administrative actions outside the core.
type ProxyRecord struct {
	ID          string
	URL         string
	Host        string
	Port        int
	SuccessRate int // 0..100; below 50 forces IsActive=false
	LatencyMs   int
	IsActive    bool
	LastUsedAt  *time.Time
	UsageCount  int
}

// ProxyUsage is one append-only usage log entry, written after every proxied
// attempt whether it succeeded or not.
type ProxyUsage struct {
	ID           string
	ProxyID      string
	Success      bool
	LatencyMs    int
	ErrorMessage string
	At           time.Time
}

// CustomSource is an externally managed M3U source merged into the catalog
// when enabled.
type CustomSource struct {
	ID      string
	URL     string
	Enabled bool
}

// APIResponse is a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
