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

// Command chunk-splitter runs the game splitter stage (§4.4): it streams
// a synced archive through ZSTD decode and PGN boundary scanning,
// publishing raw-games transactionally and checkpointing its position.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/config"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
	"github.com/lichess-archive/chess-pipeline/internal/splitter"
)

const stageName = "chunk-splitter"
const groupID = "chunk-splitter"

// syncedEvent mirrors the JSON value published to archive-file-synced (§6.2).
type syncedEvent struct {
	Path        string `json:"path"`
	TotalChunks uint64 `json:"total_chunks"`
}

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.ChunkSplitter.Enabled {
		log.Info().Msg("chunk-splitter disabled, exiting")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := objectstore.New(ctx, cfg.Infra.Storage.Endpoint, "", "chess-pipeline",
		cfg.Infra.Storage.AccessKey, cfg.Infra.Storage.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create object store client")
	}

	brokerClient := broker.New(cfg.Infra.Queue.Endpoint)
	logProducer, err := brokerClient.NewProducer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create producer")
	}
	defer logProducer.Close()
	log = logging.WithBrokerSink(log, stageName, logProducer)

	consumer, err := brokerClient.NewConsumer(groupID, []string{broker.TopicArchiveFileSynced}, false, 10*time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	defer consumer.Close()

	reg := metrics.New(stageName)
	go func() {
		if err := reg.Serve(ctx, ":9090"); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	stage := &splitter.Stage{
		Store:  store,
		Broker: brokerClient,
		Log:    log,
		Meter:  progress.New(log, stageName),
	}

	for {
		msgs, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("poll failed")
			continue
		}
		for _, msg := range msgs {
			var event syncedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Error().Err(err).Msg("malformed archive-file-synced event")
				continue
			}
			if err := stage.Process(ctx, event.Path, event.TotalChunks); err != nil {
				log.Error().Err(err).Str("path", event.Path).Msg("failed to split archive")
				continue
			}
			reg.MessagesConsumed.Inc()
			if err := consumer.CommitSync(ctx, msg); err != nil {
				log.Error().Err(err).Msg("failed to commit offset")
			}
		}
	}
}
