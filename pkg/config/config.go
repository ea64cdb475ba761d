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

package config

import (
	"fmt"
	"time"
)

// Default MediaHubMX endpoints. The ping mirrors are tried in order; the
// catalog and resolve endpoints share the signature obtained from the ping.
const (
	DefaultCatalogURL = "https://vavoo.to/mediahubmx-catalog.json"
	DefaultResolveURL = "https://vavoo.to/mediahubmx-resolve.json"
)

// DefaultPingURLs returns the known handshake mirrors.
func DefaultPingURLs() []string {
	return []string{
		"https://www.vavoo.tv/api/app/ping",
		"https://vavoo.to/api/app/ping",
	}
}

// HostConfiguration containt host infos
type HostConfiguration struct {
	Hostname string
	Port     int
}

// RelayConfig represents the whole relay service configuration
type RelayConfig struct {
	HostConfig     *HostConfiguration
	AdvertisedPort int
	HTTPS          bool
	M3UFileName    string

	// MediaHubMX upstream
	Language      string
	Region        string
	ClientVersion string
	PingURLs      []string
	CatalogURL    string
	ResolveURL    string

	SignatureTTL time.Duration
	CatalogTTL   time.Duration

	// Stalker portal upstream (enabled when the portal URL is set)
	StalkerPortalURL string
	StalkerMAC       string
	StalkerTimezone  string

	ProxyPoolEnabled bool
	DatabaseEnabled  bool
}

// BaseURL returns the externally visible base URL of the relay, built from
// the advertised host configuration.
func (c *RelayConfig) BaseURL() string {
	protocol := "http"
	if c.HTTPS {
		protocol = "https"
	}
	host := c.HostConfig.Hostname
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, host, c.AdvertisedPort)
}
