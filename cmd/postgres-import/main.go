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

// Command postgres-import runs the relational sink (§4.6.1): N consumer
// tasks in one group, each with its own Postgres connection, writing
// parsed-games into the chess_games/chess_game_moves tables.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/config"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
	"github.com/lichess-archive/chess-pipeline/internal/sinks/relational"
)

const stageName = "postgres-import"
const groupID = "postgres-import"
const workerCount = 4

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.PostgresImport.Enabled {
		log.Info().Msg("postgres-import disabled, exiting")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	brokerClient := broker.New(cfg.Infra.Queue.Endpoint)
	logProducer, err := brokerClient.NewProducer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create producer")
	}
	defer logProducer.Close()
	log = logging.WithBrokerSink(log, stageName, logProducer)

	reg := metrics.New(stageName)
	go func() {
		if err := reg.Serve(ctx, ":9090"); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, id, brokerClient, cfg.Infra.Database.ConnectionString, log, reg)
		}(i)
	}
	wg.Wait()
}

// runWorker owns one consumer-group member and one dedicated database
// connection, per §4.6.1's "each holds its own DB connection".
func runWorker(ctx context.Context, id int, brokerClient *broker.Client, connStr string, log zerolog.Logger, reg *metrics.Registry) {
	meter := progress.New(log, stageName)

	worker, err := relational.NewWorker(ctx, connStr, log, meter)
	if err != nil {
		log.Error().Err(err).Int("worker", id).Msg("failed to start relational worker")
		return
	}
	defer worker.Close()

	consumer, err := brokerClient.NewConsumer(groupID, []string{broker.TopicParsedGames}, false, 5*time.Minute)
	if err != nil {
		log.Error().Err(err).Int("worker", id).Msg("failed to create consumer")
		return
	}
	defer consumer.Close()

	for {
		msgs, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", id).Msg("poll failed")
			continue
		}
		for _, msg := range msgs {
			game, err := pgnmodel.DecodeParsedGame(msg.Value)
			if err != nil {
				log.Error().Err(err).Int("worker", id).Msg("malformed parsed-games message")
				continue
			}
			if err := worker.Write(ctx, msg.Key, game); err != nil {
				log.Error().Err(err).Int("worker", id).Msg("failed to write game")
				continue
			}
			reg.MessagesConsumed.Inc()
			if err := consumer.CommitSync(ctx, msg); err != nil {
				log.Error().Err(err).Int("worker", id).Msg("failed to commit offset")
			}
		}
	}
}
