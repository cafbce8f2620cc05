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

// Command update-checker polls the upstream Lichess archive listing hourly
// and publishes each file's URL to archive-file-index, supplementing the
// distilled spec with the source tree's update_checker step.
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
	"github.com/lichess-archive/chess-pipeline/internal/lichess"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
)

const stageName = "update-checker"
const pollInterval = time.Hour

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.UpdateChecker.Enabled {
		log.Info().Msg("update-checker disabled, exiting")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	brokerClient := broker.New(cfg.Infra.Queue.Endpoint)
	producer, err := brokerClient.NewProducer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create producer")
	}
	defer producer.Close()
	log = logging.WithBrokerSink(log, stageName, producer)

	reg := metrics.New(stageName)
	go func() {
		if err := reg.Serve(ctx, ":9090"); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	client := lichess.New(&http.Client{Timeout: 30 * time.Second})

	for {
		log.Info().Msg("fetching files list from lichess")
		files, err := client.ListFiles(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch lichess file list")
		} else {
			for _, file := range files {
				if err := producer.Send(ctx, broker.TopicArchiveFileIndex, []byte(file), []byte(file)); err != nil {
					log.Error().Err(err).Str("file", file).Msg("failed to publish archive-file-index")
					continue
				}
				reg.MessagesProduced.Inc()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}
