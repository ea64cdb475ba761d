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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasduport/stream-relay/pkg/config"
	"github.com/lucasduport/stream-relay/pkg/session"
	"github.com/lucasduport/stream-relay/pkg/types"
)

func newTestConfig(pingURL, catalogURL, resolveURL string) *config.RelayConfig {
	return &config.RelayConfig{
		HostConfig:    &config.HostConfiguration{Hostname: "localhost", Port: 8080},
		Language:      "de",
		Region:        "AT",
		ClientVersion: "3.0.2",
		PingURLs:      []string{pingURL},
		CatalogURL:    catalogURL,
		ResolveURL:    resolveURL,
		SignatureTTL:  480 * time.Second,
		CatalogTTL:    time.Hour,
	}
}

func newTestClient(cfg *config.RelayConfig) *Client {
	c := NewClient(cfg, session.NewTokenStore(), nil)
	c.sleep = func(time.Duration) {}
	return c
}

// handshakeServer hands out sig-1, sig-2, ... and counts calls.
func handshakeServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			t.Errorf("handshake method = %s", req.Method)
		}
		if ua := req.Header.Get("User-Agent"); ua != "MediaHubMX/2" {
			t.Errorf("handshake User-Agent = %q", ua)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Errorf("handshake body not JSON: %v", err)
		}
		if payload["reason"] != "app-start" {
			t.Errorf("handshake reason = %v", payload["reason"])
		}
		n := atomic.AddInt32(calls, 1)
		fmt.Fprintf(w, `{"addonSig": "sig-%d"}`, n)
	}))
}

func TestAcquireHandshake(t *testing.T) {
	var calls int32
	ping := handshakeServer(t, &calls)
	defer ping.Close()

	c := newTestClient(newTestConfig(ping.URL, "", ""))

	sig, err := c.Acquire(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != "sig-1" {
		t.Errorf("signature = %q, want sig-1", sig.Value)
	}

	// Second acquire hits the cache.
	again, err := c.Acquire(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if again.Value != "sig-1" || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("cached acquire re-handshaked: sig=%q calls=%d", again.Value, calls)
	}
}

func TestAcquireMirrorFailover(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	var calls int32
	alive := handshakeServer(t, &calls)
	defer alive.Close()

	cfg := newTestConfig(dead.URL, "", "")
	cfg.PingURLs = []string{dead.URL, alive.URL}
	c := newTestClient(cfg)

	sig, err := c.Acquire(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != "sig-1" {
		t.Errorf("signature = %q, want sig-1 from the second mirror", sig.Value)
	}
}

func TestAcquireStaleFallback(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	c := newTestClient(newTestConfig(dead.URL, "", ""))
	stale := types.Signature{Value: "sig-stale", AcquiredAt: time.Now().Add(-time.Hour)}
	c.store.Set(stale)

	sig, err := c.Acquire(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != "sig-stale" {
		t.Errorf("signature = %q, want the stale fallback", sig.Value)
	}
}

func TestAcquireNoTokenWhenNothingCached(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	c := newTestClient(newTestConfig(dead.URL, "", ""))

	if _, err := c.Acquire(context.Background(), false); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}
