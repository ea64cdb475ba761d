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

package utils

// GetRelayUserAgent returns the user agent sent on manifest and segment
// fetches. Anonymous requests are rejected upstream, so the relay always
// presents itself as the legitimate client app.
// Uses the USER_AGENT environment variable if set.
func GetRelayUserAgent() string {
	return GetEnvOrDefault("USER_AGENT", "MediaHubMX/2")
}

// GetRelayReferer returns the referer sent alongside the user agent.
// Uses the REFERER environment variable if set.
func GetRelayReferer() string {
	return GetEnvOrDefault("REFERER", "https://vavoo.to/")
}
