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

// Command game-parser runs the PGN parser stage (§4.5): it drives the
// visitor over raw-games messages, publishing to parsed-games or
// parser-errors with a bounded window of in-flight publishes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/config"
	"github.com/lichess-archive/chess-pipeline/internal/gameparser"
	"github.com/lichess-archive/chess-pipeline/internal/logging"
	"github.com/lichess-archive/chess-pipeline/internal/metrics"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

const stageName = "game-parser"
const groupID = "game-parser"

func main() {
	log := logging.New(stageName)
	cfg := config.Load(log)

	if !cfg.Steps.GameParser.Enabled {
		log.Info().Msg("game-parser disabled, exiting")
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

	// auto_commit is true (async mode) per §4.5: losing the most recent
	// commit causes at-most one duplicate which the sinks tolerate.
	consumer, err := brokerClient.NewConsumer(groupID, []string{broker.TopicRawGames}, true, 5*time.Minute)
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

	stage := gameparser.NewStage(producer, log, progress.New(log, stageName))

	for {
		msgs, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("poll failed")
			continue
		}
		for _, msg := range msgs {
			raw, err := pgnmodel.DecodeRawGameMessage(msg.Value)
			if err != nil {
				log.Error().Err(err).Msg("malformed raw-games message")
				continue
			}
			stage.Process(ctx, raw)
			reg.MessagesConsumed.Inc()
		}
		consumer.CommitAsync(msgs...)
		if ctx.Err() != nil {
			break
		}
	}

	if err := stage.Wait(); err != nil {
		log.Error().Err(err).Msg("error while draining in-flight publishes")
	}
}
