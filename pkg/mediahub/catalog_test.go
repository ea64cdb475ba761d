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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// catalogServer serves two pages and checks the signature header.
func catalogServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(requests, 1)
		if req.Header.Get("mediahubmx-signature") == "" {
			t.Error("catalog request without signature header")
		}

		var body map[string]interface{}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("catalog body not JSON: %v", err)
		}
		if body["catalogId"] != "iptv" || body["id"] != "iptv" {
			t.Errorf("catalog ids = %v/%v", body["catalogId"], body["id"])
		}

		switch body["cursor"] {
		case "":
			fmt.Fprint(w, `{
				"items": [
					{"type": "iptv", "name": "TF1 FHD", "url": "https://up.example.com/ch/1", "logo": "https://up.example.com/l/1.png", "group": "France➾Sport"},
					{"type": "series", "name": "Not a channel", "url": "https://up.example.com/s/9"},
					{"type": "iptv", "name": "nameless", "url": ""}
				],
				"nextCursor": "page-2"
			}`)
		case "page-2":
			fmt.Fprint(w, `{
				"items": [
					{"type": "iptv", "name": "ORF1 HD", "url": "https://up.example.com/ch/2", "group": "Austria.nw"}
				],
				"nextCursor": null
			}`)
		default:
			t.Errorf("unexpected cursor %v", body["cursor"])
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestSyncPaginatesAndNormalizes(t *testing.T) {
	var handshakes, requests int32
	ping := handshakeServer(t, &handshakes)
	defer ping.Close()
	catalog := catalogServer(t, &requests)
	defer catalog.Close()

	c := newTestClient(newTestConfig(ping.URL, catalog.URL, ""))

	entries, err := c.Sync(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (filtered and paginated)", len(entries))
	}

	first := entries[0]
	if first.CleanName != "TF1" || first.Quality != "FHD" {
		t.Errorf("first entry normalization: name=%q quality=%q", first.CleanName, first.Quality)
	}
	if first.CountryGroup != "France" || first.Genre != "Sport" {
		t.Errorf("first entry group split: country=%q genre=%q", first.CountryGroup, first.Genre)
	}
	if first.Source != "mediahubmx" || first.ID == "" || first.ID[0] != 'm' {
		t.Errorf("first entry identity: source=%q id=%q", first.Source, first.ID)
	}

	second := entries[1]
	if second.CountryGroup != "Austria" || second.Genre != "News" {
		t.Errorf("dot-suffix split: country=%q genre=%q", second.CountryGroup, second.Genre)
	}

	snap := c.Snapshot()
	if snap == nil {
		t.Fatal("no snapshot after sync")
	}
	if entry, ok := snap.Lookup(first.ID); !ok || entry.PlaybackURL != "https://up.example.com/ch/1" {
		t.Errorf("snapshot lookup by id failed: %+v %v", entry, ok)
	}
	if id := snap.ByPlayURL["https://up.example.com/ch/2"]; id != second.ID {
		t.Errorf("reverse lookup = %q, want %q", id, second.ID)
	}
}

func TestSyncFreshCacheSkipsNetwork(t *testing.T) {
	var handshakes, requests int32
	ping := handshakeServer(t, &handshakes)
	defer ping.Close()
	catalog := catalogServer(t, &requests)
	defer catalog.Close()

	c := newTestClient(newTestConfig(ping.URL, catalog.URL, ""))

	if _, err := c.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	before := atomic.LoadInt32(&requests)
	snapBefore := c.Snapshot()

	entries, err := c.Sync(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&requests) != before {
		t.Error("fresh-cache sync still hit the network")
	}
	if len(entries) != len(snapBefore.Entries) {
		t.Errorf("fresh-cache sync returned %d entries, want %d", len(entries), len(snapBefore.Entries))
	}
	if c.Snapshot() != snapBefore {
		t.Error("fresh-cache sync replaced the snapshot")
	}
}

func TestSyncForceReplacesSnapshot(t *testing.T) {
	var handshakes, requests int32
	ping := handshakeServer(t, &handshakes)
	defer ping.Close()
	catalog := catalogServer(t, &requests)
	defer catalog.Close()

	c := newTestClient(newTestConfig(ping.URL, catalog.URL, ""))

	if _, err := c.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	snapBefore := c.Snapshot()

	if _, err := c.Sync(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot() == snapBefore {
		t.Error("forced sync did not build a new snapshot")
	}
}

func TestSyncKeepsCacheWhenAllPagesFail(t *testing.T) {
	var handshakes int32
	ping := handshakeServer(t, &handshakes)
	defer ping.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	c := newTestClient(newTestConfig(ping.URL, broken.URL, ""))

	if _, err := c.Sync(context.Background(), false); err == nil {
		t.Error("sync against a broken catalog reported success")
	}
	if c.Snapshot() != nil {
		t.Error("failed sync installed a snapshot")
	}
}

func TestParseCatalogPageMalformed(t *testing.T) {
	if _, _, err := parseCatalogPage([]byte(`{"items": "not-an-array"}`)); err == nil {
		t.Error("malformed page parsed without error")
	}
}
