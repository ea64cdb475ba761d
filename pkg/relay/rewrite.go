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

package relay

import (
	"net/url"
	"strings"
)

// EmptyPlaylist is the syntactically valid degraded manifest served when the
// upstream manifest cannot be fetched. Players treat it as a stall and retry.
const EmptyPlaylist = "#EXTM3U\n#EXT-X-ENDLIST\n"

// RewritePlaylist rewrites every URI line of an HLS playlist into a
// relay-local URL carrying the original absolute URL as the url query
// parameter. Comment and blank lines pass through verbatim; relative URIs
// are resolved against the manifest's own base path first. The function is
// pure: same inputs, same output.
func RewritePlaylist(body, baseURL, relayBase string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return body
	}

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}

		abs := resolveLine(base, trimmed)
		if abs == "" {
			out = append(out, line)
			continue
		}
		out = append(out, relayURL(relayBase, abs))
	}
	return strings.Join(out, "\n")
}

// resolveLine turns a playlist URI line into an absolute URL. Already
// absolute lines pass through unchanged.
func resolveLine(base *url.URL, line string) string {
	ref, err := url.Parse(line)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// relayURL builds the relay-local URL for an absolute upstream URL. Nested
// playlists route back through the manifest endpoint so their own lines get
// rewritten too; everything else is treated as a segment.
func relayURL(relayBase, absURL string) string {
	endpoint := "/segment"
	if isPlaylistURL(absURL) {
		endpoint = "/manifest.m3u8"
	}
	return relayBase + endpoint + "?url=" + url.QueryEscape(absURL)
}

func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}
