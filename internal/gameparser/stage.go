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

// Package gameparser runs the PGN parser stage (§4.5): it drives the
// visitor over raw-games messages, publishing to parsed-games on success
// and parser-errors on a recoverable failure, with a bounded window of
// in-flight publishes.
package gameparser

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/pgnerr"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
	"github.com/lichess-archive/chess-pipeline/internal/pgnvisitor"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

// inFlight bounds the number of concurrent publish sub-tasks (§4.5).
const inFlight = 16

// Stage drives raw-games through the visitor and fans out to
// parsed-games/parser-errors.
type Stage struct {
	Producer *broker.Producer
	Log      zerolog.Logger
	Meter    *progress.Meter

	group *errgroup.Group
}

// NewStage constructs a Stage with its publish concurrency bounded to
// inFlight sub-tasks.
func NewStage(producer *broker.Producer, log zerolog.Logger, meter *progress.Meter) *Stage {
	g := &errgroup.Group{}
	g.SetLimit(inFlight)
	return &Stage{Producer: producer, Log: log, Meter: meter, group: g}
}

// Process parses one raw-games message and schedules its publish as a
// bounded sub-task; it blocks only when inFlight publishes are already
// outstanding (§4.5 back-pressure).
//
// A Fatal parse error (malformed Round, unknown Result, unknown NAG, …)
// halts the owning process: there is no well-defined visitor state to
// recover into, so the stage logs the violation and exits non-zero rather
// than limping on (§7 "user-visible failure").
func (s *Stage) Process(ctx context.Context, raw pgnmodel.RawGameMessage) {
	s.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				fatal, ok := r.(*pgnerr.Fatal)
				if !ok {
					panic(r)
				}
				s.Log.Error().Err(fatal).Msg("fatal parse error, halting")
				os.Exit(1)
			}
		}()

		game, parseErrs := parseGame(raw)
		if len(parseErrs) > 0 {
			for _, perr := range parseErrs {
				if err := s.publishError(ctx, perr); err != nil {
					return err
				}
			}
			return nil
		}

		encoded := game.Encode()
		key := make([]byte, 12)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("gameparser: generate output key: %w", err)
		}
		if err := s.Producer.Send(ctx, broker.TopicParsedGames, key, encoded); err != nil {
			return fmt.Errorf("gameparser: publish parsed game: %w", err)
		}
		s.Meter.Add(1)
		return nil
	})
}

// Wait blocks until every scheduled Process call has completed, returning
// the first error encountered (if any).
func (s *Stage) Wait() error {
	return s.group.Wait()
}

func (s *Stage) publishError(ctx context.Context, parseErr error) error {
	key := make([]byte, 12)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("gameparser: generate error key: %w", err)
	}
	if err := s.Producer.Send(ctx, broker.TopicParserErrors, key, []byte(parseErr.Error())); err != nil {
		return fmt.Errorf("gameparser: publish parser error: %w", err)
	}
	return nil
}

// parseGame reconstitutes the PGN text and drives the visitor. A Fatal
// error propagates as a panic, caught by Process's recover.
func parseGame(raw pgnmodel.RawGameMessage) (game pgnmodel.ParsedGame, errs []error) {
	pgn := raw.Metadata + "\n\n" + raw.Moves + "\n\n"
	visitor := pgnvisitor.NewGameVisitor()
	parseErrs := pgnvisitor.ReadGame(pgn, visitor)
	return visitor.Result(), parseErrs
}
