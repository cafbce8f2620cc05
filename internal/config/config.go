// Copyright 2026 The Chess Pipeline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the TOML configuration shared by every cmd/ binary
// (§6.1): a single file read from ./config.toml or /config/config.toml,
// defaulting silently (with a logged warning) on any parse error.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Steps toggles which pipeline stages a given process runs; most
// deployments run exactly one stage per binary, but the flags exist so a
// single process can run several for local development. Each field mirrors
// one "[steps.<name>]" TOML table (§6.1).
type Steps struct {
	UpdateChecker struct {
		Enabled bool `toml:"enabled"`
	} `toml:"update_checker"`

	FileDownloader struct {
		Enabled bool `toml:"enabled"`
	} `toml:"file_downloader"`

	ChunkSplitter struct {
		Enabled bool `toml:"enabled"`
	} `toml:"chunk_splitter"`

	GameParser struct {
		Enabled bool `toml:"enabled"`
	} `toml:"game_parser"`

	PostgresImport struct {
		Enabled bool `toml:"enabled"`
	} `toml:"postgres_import"`

	StorageImport struct {
		Enabled bool `toml:"enabled"`
	} `toml:"storage_import"`

	HDFSImport struct {
		Enabled                     bool    `toml:"enabled"`
		SyncedGamesFilesLimit       *uint32 `toml:"synced_games_files_limit"`
		SyncedGameMovesFilesLimit   *uint32 `toml:"synced_game_moves_files_limit"`
	} `toml:"hdfs_import"`
}

// Infra holds connection details for the broker, object storage, and the
// relational sink.
type Infra struct {
	Queue struct {
		Endpoint string `toml:"endpoint"`
	} `toml:"queue"`

	Storage struct {
		Endpoint     string `toml:"endpoint"`
		AccessKey    string `toml:"access_key"`
		SecretKey    string `toml:"secret_key"`
		RemoteAPIKey string `toml:"remote_api_key"`
	} `toml:"storage"`

	Database struct {
		ConnectionString string `toml:"connection_string"`
	} `toml:"database"`
}

// Config is the top-level TOML document.
type Config struct {
	Steps Steps `toml:"steps"`
	Infra Infra `toml:"infra"`
}

// Default returns the zero-value configuration with every documented
// default applied (§6.1): all steps disabled, the in-cluster broker and
// storage endpoints.
func Default() Config {
	var c Config
	c.Infra.Queue.Endpoint = "redpanda.default.svc.cluster.local:9092"
	c.Infra.Storage.Endpoint = "http://garage.default.svc.cluster.local:3900"
	return c
}

// candidatePaths is checked in order; the first existing file wins.
var candidatePaths = []string{"./config.toml", "/config/config.toml"}

// Load reads the first of candidatePaths that exists and decodes it. Any
// parse error (or the absence of both files) yields Default() and a
// logged warning, matching the spec's "empty default config is used and a
// warning is logged" behavior.
func Load(log zerolog.Logger) Config {
	for _, path := range candidatePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cfg := Default()
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("malformed config, using defaults")
			return Default()
		}
		return cfg
	}
	log.Warn().Msg("no config file found, using defaults")
	return Default()
}
