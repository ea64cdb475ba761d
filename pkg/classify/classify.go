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

// Package classify derives country, genre and quality labels from the raw
// channel metadata the upstream ships. All functions are pure; they never
// touch the network or mutate their input.
package classify

import (
	"regexp"
	"strings"
)

// groupSeparators are the glyphs upstream curators use between the country
// and genre halves of a group label. Checked in order; first hit wins.
var groupSeparators = []string{"➾", "➔", "→", "⇒", "|"}

// suffixGenres maps the trailing dot-suffix codes found on separator-less
// group labels to a genre label.
var suffixGenres = map[string]string{
	"hd": "HD",
	"sp": "Sport",
	"nw": "News",
	"do": "Documentary",
	"mv": "Movies",
	"ki": "Kids",
	"mu": "Music",
}

// quality patterns, best first. First match wins.
var qualityPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\b(4K|UHD)\b`), "4K"},
	{regexp.MustCompile(`(?i)\b(FHD|1080p?)\b`), "FHD"},
	{regexp.MustCompile(`(?i)\bHD\b`), "HD"},
	{regexp.MustCompile(`(?i)\bSD\b`), "SD"},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SplitGroup derives (country, genre) from a raw group label.
// "France➾Sport" yields ("France", "Sport"). Labels without a separator fall
// back to the dot-suffix table: "Germany.sp" yields ("Germany", "Sport").
func SplitGroup(raw string) (country, genre string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	for _, sep := range groupSeparators {
		if idx := strings.Index(raw, sep); idx >= 0 {
			country = strings.TrimSpace(raw[:idx])
			genre = strings.TrimSpace(raw[idx+len(sep):])
			return country, genre
		}
	}

	if dot := strings.LastIndex(raw, "."); dot >= 0 {
		code := strings.ToLower(raw[dot+1:])
		if g, ok := suffixGenres[code]; ok {
			return strings.TrimSpace(raw[:dot]), g
		}
	}

	return raw, ""
}

// Quality classifies a channel name into 4K, FHD, HD or SD. Names without a
// recognizable indicator yield the empty string.
func Quality(name string) string {
	for _, p := range qualityPatterns {
		if p.re.MatchString(name) {
			return p.label
		}
	}
	return ""
}

// CleanName strips quality indicators and decoration from a raw channel name
// and collapses the remaining whitespace.
func CleanName(raw string) string {
	name := raw
	for _, p := range qualityPatterns {
		name = p.re.ReplaceAllString(name, "")
	}
	name = strings.Trim(name, " -|")
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
