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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
	uuid "github.com/satori/go.uuid"
)

// pingPayload is the fixed-shape device fingerprint the upstream expects.
// Everything is static except the per-call unique id; the upstream checks
// shape, not truth.
type pingPayload struct {
	Reason   string       `json:"reason"`
	Locale   string       `json:"locale"`
	Theme    string       `json:"theme"`
	Metadata pingMetadata `json:"metadata"`
}

type pingMetadata struct {
	Device  pingDevice  `json:"device"`
	OS      pingOS      `json:"os"`
	App     pingApp     `json:"app"`
	Version pingVersion `json:"version"`
}

type pingDevice struct {
	Type     string `json:"type"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Name     string `json:"name"`
	UniqueID string `json:"uniqueId"`
}

type pingOS struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Host    string `json:"host"`
}

type pingApp struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
	BuildID  string `json:"buildId"`
	Engine   string `json:"engine"`
}

type pingVersion struct {
	Package string `json:"package"`
	Binary  string `json:"binary"`
	JS      string `json:"js"`
}

// newPingPayload builds a fingerprint describing a desktop electron client
// with a fresh unique id.
func (c *Client) newPingPayload() pingPayload {
	return pingPayload{
		Reason: "app-start",
		Locale: c.cfg.Language,
		Theme:  "dark",
		Metadata: pingMetadata{
			Device: pingDevice{
				Type:     "Desktop",
				Brand:    "electron",
				Model:    "Electron",
				Name:     "electron-app",
				UniqueID: uuid.NewV4().String(),
			},
			OS: pingOS{
				Name:    "win32",
				Version: "10.0.19045",
				Host:    "desktop",
			},
			App: pingApp{
				Platform: "electron",
				Version:  c.cfg.ClientVersion,
				BuildID:  "100000",
				Engine:   "hbc85",
			},
			Version: pingVersion{
				Package: "mediahubmx",
				Binary:  c.cfg.ClientVersion,
				JS:      c.cfg.ClientVersion,
			},
		},
	}
}

// Acquire returns a usable signature, performing the handshake when the
// cached one is absent or expired, or when force is set. When every mirror
// fails but a stale signature is cached, the stale value is returned as a
// degraded fallback: upstreams sometimes still honor expired-looking tokens.
func (c *Client) Acquire(ctx context.Context, force bool) (types.Signature, error) {
	if !force && !c.store.IsExpired(c.cfg.SignatureTTL) {
		if sig, ok := c.store.Get(); ok {
			return sig, nil
		}
	}

	sig, err := c.store.Refresh(c.cfg.SignatureTTL, force, func() (types.Signature, error) {
		return c.handshake(ctx)
	})
	if err == nil {
		return sig, nil
	}

	if stale, ok := c.store.Get(); ok {
		utils.WarnLog("Handshake failed on all mirrors, serving stale signature (age %v): %v", stale.Age(), err)
		return stale, nil
	}
	return types.Signature{}, ErrNoToken
}

// handshake POSTs the device fingerprint to each mirror in order and returns
// the first signature obtained. Mirrors are tried sequentially so a routine
// refresh does not hammer both endpoints.
func (c *Client) handshake(ctx context.Context) (types.Signature, error) {
	body, err := json.Marshal(c.newPingPayload())
	if err != nil {
		return types.Signature{}, utils.PrintErrorAndReturn(err)
	}

	var lastErr error
	for _, endpoint := range c.cfg.PingURLs {
		sig, err := c.pingOnce(ctx, endpoint, body)
		if err != nil {
			utils.DebugLog("Handshake mirror %s failed: %v", endpoint, err)
			lastErr = err
			continue
		}
		utils.InfoLog("Obtained signature from %s: %s", endpoint, utils.MaskString(sig.Value))
		return sig, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no handshake mirrors configured")
	}
	return types.Signature{}, lastErr
}

func (c *Client) pingOnce(ctx context.Context, endpoint string, body []byte) (types.Signature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return types.Signature{}, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "MediaHubMX/2")

	resp, err := c.handshakeClient.Do(req)
	if err != nil {
		return types.Signature{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Signature{}, fmt.Errorf("handshake status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Signature{}, err
	}

	value, err := jsonparser.GetString(b, "addonSig")
	if err != nil || value == "" {
		return types.Signature{}, fmt.Errorf("handshake response carries no addonSig")
	}

	return types.Signature{Value: value, AcquiredAt: time.Now()}, nil
}
