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
)

const resolveMaxRetries = 3

// resolveRequest is the resolve call body.
type resolveRequest struct {
	Language      string `json:"language"`
	Region        string `json:"region"`
	URL           string `json:"url"`
	ClientVersion string `json:"clientVersion"`
}

// Resolve turns a catalog entry's opaque playback URL into a concrete,
// time-limited stream URL. Network errors, malformed bodies and rejected
// signatures all count against the same retry budget; between attempts the
// signature is force-refreshed and the loop backs off 2^attempt seconds.
func (c *Client) Resolve(ctx context.Context, playbackURL string) (types.ResolvedStream, error) {
	sig, err := c.Acquire(ctx, false)
	if err != nil {
		return types.ResolvedStream{}, err
	}

	var lastErr error
	for attempt := 0; attempt < resolveMaxRetries; attempt++ {
		if attempt > 0 {
			// A failed attempt usually means the signature went bad.
			refreshed, err := c.Acquire(ctx, true)
			if err != nil {
				lastErr = err
				break
			}
			sig = refreshed
			c.sleep(time.Duration(1<<attempt) * time.Second)
		}

		streamURL, err := c.resolveOnce(ctx, sig, playbackURL)
		if err != nil {
			utils.DebugLog("Resolve attempt %d for %s failed: %v", attempt+1, utils.MaskString(playbackURL), err)
			lastErr = err
			continue
		}

		utils.InfoLog("Resolved %s", utils.MaskString(playbackURL))
		return types.ResolvedStream{URL: streamURL, ObtainedAt: time.Now()}, nil
	}

	utils.ErrorLog("Channel unresolvable after %d attempts: %v", resolveMaxRetries, lastErr)
	return types.ResolvedStream{}, ErrUnresolvable
}

func (c *Client) resolveOnce(ctx context.Context, sig types.Signature, playbackURL string) (string, error) {
	body, err := json.Marshal(resolveRequest{
		Language:      c.cfg.Language,
		Region:        c.cfg.Region,
		URL:           playbackURL,
		ClientVersion: c.cfg.ClientVersion,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ResolveURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "MediaHubMX/2")
	req.Header.Set("mediahubmx-signature", sig.Value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	// The response is an array; the first element's url field is the stream.
	// Presence is the only validation, playback verifies the rest.
	streamURL, err := jsonparser.GetString(b, "[0]", "url")
	if err != nil || streamURL == "" {
		return "", fmt.Errorf("resolve response carries no url")
	}
	return streamURL, nil
}
