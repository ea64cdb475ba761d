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

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lucasduport/stream-relay/pkg/config"
	"github.com/lucasduport/stream-relay/pkg/server"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stream-relay",
	Short: "Aggregates live TV catalogs and relays HLS streams",
	Long: `stream-relay synchronizes channel catalogs from MediaHubMX and
Stalker portal upstreams and re-serves every channel as an HLS stream
routed through a local relay.

It supports:
- MediaHubMX device-fingerprint handshake with signature caching
- Cursor-paginated catalog synchronization with retry and backoff
- HLS manifest rewriting and segment relaying
- A scored outbound proxy pool for egress diversification
- Stalker/MAG portal emulation`,

	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("[stream-relay] Server is starting...")

		conf := &config.RelayConfig{
			HostConfig: &config.HostConfiguration{
				Hostname: viper.GetString("hostname"),
				Port:     viper.GetInt("port"),
			},
			AdvertisedPort: viper.GetInt("advertised-port"),
			HTTPS:          viper.GetBool("https"),
			M3UFileName:    viper.GetString("m3u-file-name"),

			Language:      viper.GetString("language"),
			Region:        viper.GetString("region"),
			ClientVersion: viper.GetString("client-version"),
			PingURLs:      viper.GetStringSlice("ping-url"),
			CatalogURL:    viper.GetString("catalog-url"),
			ResolveURL:    viper.GetString("resolve-url"),

			SignatureTTL: time.Duration(viper.GetInt("signature-ttl")) * time.Second,
			CatalogTTL:   time.Duration(viper.GetInt("catalog-ttl")) * time.Second,

			StalkerPortalURL: viper.GetString("stalker-portal-url"),
			StalkerMAC:       viper.GetString("stalker-mac"),
			StalkerTimezone:  viper.GetString("stalker-timezone"),

			ProxyPoolEnabled: viper.GetBool("proxy-pool"),
			DatabaseEnabled:  viper.GetBool("database"),
		}

		if conf.AdvertisedPort == 0 {
			conf.AdvertisedPort = conf.HostConfig.Port
		}
		if len(conf.PingURLs) == 0 {
			conf.PingURLs = config.DefaultPingURLs()
		}

		srv, err := server.NewServer(conf)
		if err != nil {
			log.Fatal(err)
		}

		if err := srv.Serve(); err != nil {
			log.Fatal(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.stream-relay.yaml)")

	// Basic configuration flags
	rootCmd.Flags().Int("port", 8080, "Listening port")
	rootCmd.Flags().Int("advertised-port", 0, "Port to use in generated URLs (for reverse proxy)")
	rootCmd.Flags().String("hostname", "", "Hostname to use in generated URLs")
	rootCmd.Flags().BoolP("https", "", false, "Use HTTPS for generated URLs")
	rootCmd.Flags().String("m3u-file-name", "channels.m3u", "Name of the generated M3U file")

	// MediaHubMX upstream flags
	rootCmd.Flags().String("language", "de", "Language sent on catalog/resolve calls")
	rootCmd.Flags().String("region", "AT", "Region sent on catalog/resolve calls")
	rootCmd.Flags().String("client-version", "3.0.2", "Client version reported to the upstream")
	rootCmd.Flags().StringSlice("ping-url", nil, "Handshake mirror endpoints, tried in order")
	rootCmd.Flags().String("catalog-url", config.DefaultCatalogURL, "Catalog endpoint")
	rootCmd.Flags().String("resolve-url", config.DefaultResolveURL, "Resolve endpoint")
	rootCmd.Flags().Int("signature-ttl", 480, "Signature lifetime in seconds")
	rootCmd.Flags().Int("catalog-ttl", 3600, "Catalog cache lifetime in seconds")

	// Stalker portal flags
	rootCmd.Flags().String("stalker-portal-url", "", "Stalker portal base URL (enables the stalker upstream)")
	rootCmd.Flags().String("stalker-mac", "00:1A:79:00:00:00", "MAC address presented to the stalker portal")
	rootCmd.Flags().String("stalker-timezone", "Europe/Vienna", "Timezone cookie sent to the stalker portal")

	// Egress flags
	rootCmd.Flags().Bool("proxy-pool", false, "Route upstream fetches through the scored proxy pool")
	rootCmd.Flags().Bool("database", false, "Enable PostgreSQL persistence (proxy pool, custom sources)")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory and current directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".stream-relay")
	}

	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Read environment variables
	viper.AutomaticEnv()

	// Read in config file if found
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
