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

package mediahub

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/jamesnetherton/m3u"
	"github.com/lucasduport/stream-relay/pkg/classify"
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

// catalogRequest is the page request body. The upstream insists on every
// field being present, empty or not.
type catalogRequest struct {
	Language      string            `json:"language"`
	Region        string            `json:"region"`
	CatalogID     string            `json:"catalogId"`
	ID            string            `json:"id"`
	Adult         bool              `json:"adult"`
	Search        string            `json:"search"`
	Sort          string            `json:"sort"`
	Filter        map[string]string `json:"filter"`
	Cursor        string            `json:"cursor"`
	ClientVersion string            `json:"clientVersion"`
}

// Sync refreshes the catalog cache. With force unset and a fresh cache the
// cached entries are returned untouched, without any network call. A page
// failure aborts the pagination but keeps whatever was accumulated; partial
// results still replace the cache as long as they are non-empty.
func (c *Client) Sync(ctx context.Context, force bool) ([]types.CatalogEntry, error) {
	if !force {
		if snap := c.Snapshot(); !snap.IsExpired(c.cfg.CatalogTTL) {
			utils.DebugLog("Catalog cache is fresh (%d entries), skipping sync", len(snap.Entries))
			return snap.Entries, nil
		}
	}

	sig, err := c.Acquire(ctx, false)
	if err != nil {
		return nil, err
	}

	utils.InfoLog("Starting catalog sync")
	start := time.Now()

	var entries []types.CatalogEntry
	cursor := ""
	page := 0
	var pageErr error

	for {
		page++
		items, next, err := c.fetchPageWithRetry(ctx, sig, cursor)
		if err != nil {
			utils.ErrorLog("Catalog page %d failed after retries, keeping %d accumulated entries: %v", page, len(entries), err)
			pageErr = err
			break
		}

		entries = append(entries, items...)
		if len(items) == 0 || next == "" {
			break
		}
		cursor = next

		// Self-imposed rate limit.
		if page%rateLimitEvery == 0 {
			c.sleep(time.Second)
		}
	}

	// Custom sources never fail the sync; they are best effort.
	entries = append(entries, c.customEntries()...)

	if len(entries) == 0 {
		if pageErr != nil {
			return nil, pageErr
		}
		utils.WarnLog("Catalog sync returned no entries, keeping previous cache")
		return nil, nil
	}

	c.replaceSnapshot(entries)
	utils.InfoLog("Catalog sync finished: %d entries in %d pages (%v)", len(entries), page, time.Since(start).Round(time.Millisecond))
	return entries, nil
}

// fetchPageWithRetry retries one page up to pageRetryLimit times with
// exponential backoff (1s, 2s, 4s) before giving up.
func (c *Client) fetchPageWithRetry(ctx context.Context, sig types.Signature, cursor string) ([]types.CatalogEntry, string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		items, next, err := c.fetchPage(ctx, sig, cursor)
		if err == nil {
			return items, next, nil
		}
		lastErr = err
		if attempt >= pageRetryLimit {
			break
		}
		backoff := time.Duration(1<<attempt) * time.Second
		utils.DebugLog("Catalog page failed (attempt %d), retrying in %v: %v", attempt+1, backoff, err)
		c.sleep(backoff)
	}
	return nil, "", lastErr
}

func (c *Client) fetchPage(ctx context.Context, sig types.Signature, cursor string) ([]types.CatalogEntry, string, error) {
	body, err := json.Marshal(catalogRequest{
		Language:      c.cfg.Language,
		Region:        c.cfg.Region,
		CatalogID:     catalogID,
		ID:            catalogID,
		Filter:        map[string]string{},
		Cursor:        cursor,
		ClientVersion: c.cfg.ClientVersion,
	})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CatalogURL, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "MediaHubMX/2")
	req.Header.Set("mediahubmx-signature", sig.Value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("catalog status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, "", err
	}

	return parseCatalogPage(b)
}

// parseCatalogPage extracts catalog entries from one page body. Items whose
// type is not "iptv" are dropped.
func parseCatalogPage(body []byte) ([]types.CatalogEntry, string, error) {
	var entries []types.CatalogEntry
	_, err := jsonparser.ArrayEach(body, func(item []byte, _ jsonparser.ValueType, _ int, _ error) {
		if itemType, _ := jsonparser.GetString(item, "type"); itemType != catalogID {
			return
		}
		name, _ := jsonparser.GetString(item, "name")
		playURL, _ := jsonparser.GetString(item, "url")
		if name == "" || playURL == "" {
			return
		}
		logo, _ := jsonparser.GetString(item, "logo")
		group, _ := jsonparser.GetString(item, "group")
		entries = append(entries, newEntry(name, playURL, logo, group, "mediahubmx"))
	}, "items")
	if err != nil {
		return nil, "", fmt.Errorf("malformed catalog page: %w", err)
	}

	// A null or absent nextCursor terminates pagination.
	next, _ := jsonparser.GetString(body, "nextCursor")
	return entries, next, nil
}

// newEntry derives a normalized immutable catalog entry from raw item fields.
func newEntry(rawName, playURL, logo, group, source string) types.CatalogEntry {
	country, genre := classify.SplitGroup(group)
	sum := md5.Sum([]byte(playURL))
	return types.CatalogEntry{
		ID:           source[:1] + hex.EncodeToString(sum[:])[:12],
		RawName:      rawName,
		CleanName:    classify.CleanName(rawName),
		PlaybackURL:  playURL,
		LogoURL:      logo,
		CountryGroup: country,
		Genre:        genre,
		Quality:      classify.Quality(rawName),
		Source:       source,
	}
}

// customEntries pulls the enabled custom M3U sources from the persistence
// layer and converts their tracks into catalog entries.
func (c *Client) customEntries() []types.CatalogEntry {
	if c.sources == nil {
		return nil
	}

	list, err := c.sources.GetEnabledCustomSources()
	if err != nil {
		utils.WarnLog("Could not list custom sources: %v", err)
		return nil
	}

	var entries []types.CatalogEntry
	for _, src := range list {
		playlist, err := m3u.Parse(src.URL)
		if err != nil {
			utils.WarnLog("Custom source %s unreadable: %v", src.URL, err)
			continue
		}
		for _, track := range playlist.Tracks {
			group := ""
			logo := ""
			for _, tag := range track.Tags {
				switch tag.Name {
				case "group-title":
					group = tag.Value
				case "tvg-logo":
					logo = tag.Value
				}
			}
			entries = append(entries, newEntry(track.Name, track.URI, logo, group, "custom"))
		}
		utils.InfoLog("Merged custom source %s (%d tracks)", src.URL, len(playlist.Tracks))
	}
	return entries
}
