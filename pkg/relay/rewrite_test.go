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
	"testing"
)

const relayBase = "http://relay.local:8080"

func TestRewritePlaylistMaster(t *testing.T) {
	body := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360",
		"low/index.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720",
		"https://cdn.example.com/hls/high/index.m3u8",
		"",
	}, "\n")

	got := RewritePlaylist(body, "https://cdn.example.com/hls/master.m3u8", relayBase)
	lines := strings.Split(got, "\n")

	if lines[0] != "#EXTM3U" {
		t.Errorf("comment line rewritten: %q", lines[0])
	}
	if lines[1] != "#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360" {
		t.Errorf("attribute line rewritten: %q", lines[1])
	}

	wantLow := relayBase + "/manifest.m3u8?url=" + url.QueryEscape("https://cdn.example.com/hls/low/index.m3u8")
	if lines[2] != wantLow {
		t.Errorf("relative variant line = %q, want %q", lines[2], wantLow)
	}

	wantHigh := relayBase + "/manifest.m3u8?url=" + url.QueryEscape("https://cdn.example.com/hls/high/index.m3u8")
	if lines[4] != wantHigh {
		t.Errorf("absolute variant line = %q, want %q", lines[4], wantHigh)
	}

	if lines[5] != "" {
		t.Errorf("trailing blank line not preserved: %q", lines[5])
	}
}

func TestRewritePlaylistMedia(t *testing.T) {
	body := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:6",
		"#EXTINF:6.0,",
		"seg001.ts",
		"#EXTINF:6.0,",
		"https://other.example.net/seg002.ts?token=abc",
	}, "\n")

	got := RewritePlaylist(body, "https://cdn.example.com/hls/low/index.m3u8", relayBase)
	lines := strings.Split(got, "\n")

	wantFirst := relayBase + "/segment?url=" + url.QueryEscape("https://cdn.example.com/hls/low/seg001.ts")
	if lines[3] != wantFirst {
		t.Errorf("relative segment = %q, want %q", lines[3], wantFirst)
	}

	wantSecond := relayBase + "/segment?url=" + url.QueryEscape("https://other.example.net/seg002.ts?token=abc")
	if lines[5] != wantSecond {
		t.Errorf("absolute segment = %q, want %q", lines[5], wantSecond)
	}
}

func TestRewritePlaylistRoundTrip(t *testing.T) {
	original := "https://cdn.example.com/hls/low/seg001.ts?exp=1700000000&sig=a%2Fb"
	got := RewritePlaylist(original, "https://cdn.example.com/hls/low/index.m3u8", relayBase)

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("rewritten line does not parse: %v", err)
	}
	if decoded := u.Query().Get("url"); decoded != original {
		t.Errorf("url parameter round-trip = %q, want %q", decoded, original)
	}
}

func TestRewritePlaylistDeterministic(t *testing.T) {
	body := "#EXTM3U\nseg001.ts\n"
	base := "https://cdn.example.com/hls/index.m3u8"

	first := RewritePlaylist(body, base, relayBase)
	second := RewritePlaylist(body, base, relayBase)
	if first != second {
		t.Errorf("rewrite is not deterministic:\n%q\n%q", first, second)
	}
}
