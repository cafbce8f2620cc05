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

// Command hdfs-import runs the filesystem-import stage (§4.6.3): it polls
// the remote CSV catalog hourly and loads new objects into their target
// tables, deduplicating against a JSON-persisted synced-key set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lichess-archive/chess-pipeline/internal/config"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/sinks/fsimport"
)

const stageName = "hdfs-import"
const pollInterval = time.Hour
const statePath = "/var/lib/chess-pipeline/hdfs-import-synced.json"
const importRoot = "/var/lib/chess-pipeline/hdfs-import"

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.HDFSImport.Enabled {
		log.Info().Msg("hdfs-import disabled, exiting")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	catalog := objectstore.NewRemoteCatalog(cfg.Infra.Storage.Endpoint, "chess-pipeline", cfg.Infra.Storage.RemoteAPIKey)
	target := &fsimport.LocalDiskTarget{Root: importRoot}

	stage, err := fsimport.NewStage(catalog, target, statePath, fsimport.Limits{
		GamesFiles:     cfg.Steps.HDFSImport.SyncedGamesFilesLimit,
		GameMovesFiles: cfg.Steps.HDFSImport.SyncedGameMovesFilesLimit,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize filesystem-import stage")
	}

	reg := metrics.New(stageName)
	go func() {
		if err := reg.Serve(ctx, ":9090"); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	for {
		log.Info().Msg("polling remote CSV catalog")
		if err := stage.Poll(ctx); err != nil {
			log.Error().Err(err).Msg("filesystem-import poll failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}
