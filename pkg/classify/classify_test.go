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

package classify

import "testing"

func TestSplitGroup(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		country string
		genre   string
	}{
		{"arrow separator", "France➾Sport", "France", "Sport"},
		{"arrow with spaces", "Italy ➔ News", "Italy", "News"},
		{"pipe separator", "Spain|Movies", "Spain", "Movies"},
		{"dot suffix sport", "Germany.sp", "Germany", "Sport"},
		{"dot suffix kids", "Austria.ki", "Austria", "Kids"},
		{"unknown dot suffix", "channels.xyz", "channels.xyz", ""},
		{"no separator", "Germany", "Germany", ""},
		{"empty", "", "", ""},
		{"whitespace only", "   ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			country, genre := SplitGroup(tt.raw)
			if country != tt.country || genre != tt.genre {
				t.Errorf("SplitGroup(%q) = (%q, %q), want (%q, %q)",
					tt.raw, country, genre, tt.country, tt.genre)
			}
		})
	}
}

func TestQuality(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fhd", "TF1 FHD", "FHD"},
		{"1080p", "TF1 1080p", "FHD"},
		{"4k", "M6 4K", "4K"},
		{"uhd lowercase", "M6 uhd", "4K"},
		{"hd", "ORF1 HD", "HD"},
		{"sd", "ORF2 SD", "SD"},
		{"4k beats hd", "Sky Sport 4K HD", "4K"},
		{"no indicator", "Arte", ""},
		{"hd inside word does not count", "HDMI Channel", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quality(tt.in); got != tt.want {
				t.Errorf("Quality(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fhd", "TF1 FHD", "TF1"},
		{"strips 4k and trims", "M6 4K -", "M6"},
		{"collapses whitespace", "Sky   Sport  HD", "Sky Sport"},
		{"plain name untouched", "Arte", "Arte"},
		{"trailing pipe", "RTL |", "RTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanName(tt.in); got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
