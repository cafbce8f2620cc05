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

// Command file-downloader runs the ingest fetcher stage (§4.3): it
// consumes archive-file-index and turns each archive into object-storage
// chunks plus a manifest.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/config"
	"github.com/lichess-archive/chess-pipeline/internal/fetcher"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/pgnerr"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

const stageName = "file-downloader"
const groupID = "file-downloader"

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.FileDownloader.Enabled {
		log.Info().Msg("file-downloader disabled, exiting")
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
	producer, err := brokerClient.NewProducer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create producer")
	}
	defer producer.Close()
	log = logging.WithBrokerSink(log, stageName, producer)

	consumer, err := brokerClient.NewConsumer(groupID, []string{broker.TopicArchiveFileIndex}, false, 5*time.Minute)
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

	stage := &fetcher.Stage{
		HTTP:     &http.Client{Timeout: 0},
		Store:    store,
		Producer: producer,
		Log:      log,
		Meter:    progress.New(log, stageName),
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
			url := string(msg.Value)
			if err := stage.Process(ctx, url); err != nil {
				if pgnerr.IsFatal(err) {
					log.Error().Err(err).Str("url", url).Msg("fatal fetcher error, halting")
					os.Exit(1)
				}
				log.Error().Err(err).Str("url", url).Msg("failed to process archive-file-index message")
				continue
			}
			reg.MessagesConsumed.Inc()
			if err := consumer.CommitSync(ctx, msg); err != nil {
				log.Error().Err(err).Msg("failed to commit offset")
			}
		}
	}
}
