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

// Package relay fetches upstream HLS resources under an impersonated client
// identity and serves them back rewritten so that every subsequent request
// flows through the relay as well.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

const (
	manifestTimeout = 10 * time.Second
	segmentTimeout  = 30 * time.Second
)

// Egress selects outbound proxies and records how each use went. A nil
// Egress means every fetch goes out directly.
type Egress interface {
	Select() (types.ProxyRecord, bool)
	Record(proxyID string, success bool, latencyMs int, errMsg string)
}

// Relay serves manifests and segments for one relay base URL.
type Relay struct {
	relayBase string
	egress    Egress

	manifestClient *http.Client
	segmentClient  *http.Client
}

// NewRelay creates a relay advertising relayBase in rewritten URLs. egress
// may be nil.
func NewRelay(relayBase string, egress Egress) *Relay {
	return &Relay{
		relayBase:      relayBase,
		egress:         egress,
		manifestClient: &http.Client{Timeout: manifestTimeout},
		segmentClient:  &http.Client{Timeout: segmentTimeout},
	}
}

// Manifest fetches streamURL, rewrites it and writes the result. Any fetch
// failure degrades to the empty playlist with a 200 so players keep polling
// instead of erroring out.
func (r *Relay) Manifest(c *gin.Context, streamURL string) {
	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")

	body, err := r.fetchManifest(c.Request.Context(), streamURL)
	if err != nil {
		utils.WarnLog("Manifest fetch failed for %s, serving empty playlist: %v", utils.MaskString(streamURL), err)
		c.String(http.StatusOK, EmptyPlaylist)
		return
	}

	c.String(http.StatusOK, RewritePlaylist(body, streamURL, r.relayBase))
}

func (r *Relay) fetchManifest(ctx context.Context, streamURL string) (string, error) {
	resp, err := r.fetch(ctx, r.manifestClient, streamURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("manifest status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Segment streams one media segment through, preserving the upstream status
// (206 included), Content-Type, Content-Length and Content-Range. The Range
// request header is forwarded so seeking keeps working.
func (r *Relay) Segment(c *gin.Context, rawURL string) {
	var header http.Header
	if rng := c.GetHeader("Range"); rng != "" {
		header = http.Header{"Range": []string{rng}}
	}

	resp, err := r.fetch(c.Request.Context(), r.segmentClient, rawURL, header)
	if err != nil {
		utils.ErrorLog("Segment fetch failed for %s: %v", utils.MaskString(rawURL), err)
		c.AbortWithStatus(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range"} {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
	// Segments are immutable once published.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Status(resp.StatusCode)

	buffer := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			if _, werr := c.Writer.Write(buffer[:n]); werr != nil {
				return
			}
			if flusher, ok := c.Writer.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// fetch performs one upstream request with impersonation headers, routed
// through a scored proxy when one is available. A proxied transport error is
// recorded against the proxy and the request falls back to a direct attempt.
func (r *Relay) fetch(ctx context.Context, client *http.Client, rawURL string, header http.Header) (*http.Response, error) {
	req, err := r.newRequest(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}

	if r.egress != nil {
		if rec, ok := r.egress.Select(); ok {
			resp, err := r.viaProxy(client, req, rec)
			if err == nil {
				return resp, nil
			}
			utils.WarnLog("Proxy %s failed, falling back to direct: %v", rec.Host, err)
			req, err = r.newRequest(ctx, rawURL, header)
			if err != nil {
				return nil, err
			}
		}
	}

	return client.Do(req)
}

func (r *Relay) newRequest(ctx context.Context, rawURL string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.GetRelayUserAgent())
	req.Header.Set("Referer", utils.GetRelayReferer())
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// viaProxy runs req through the chosen proxy on a cloned client and records
// the outcome, latency included.
func (r *Relay) viaProxy(client *http.Client, req *http.Request, rec types.ProxyRecord) (*http.Response, error) {
	proxyURL, err := url.Parse(rec.URL)
	if err != nil {
		r.egress.Record(rec.ID, false, 0, "bad proxy url")
		return nil, err
	}

	proxied := &http.Client{
		Timeout:   client.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}

	start := time.Now()
	resp, err := proxied.Do(req)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		r.egress.Record(rec.ID, false, latency, err.Error())
		return nil, err
	}

	r.egress.Record(rec.ID, true, latency, "")
	return resp, nil
}
