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

// Package csvsink implements the CSV-to-object-storage sink (§4.6.2):
// three in-memory buffers flush at their own thresholds into random-keyed
// CSV objects. encoding/csv is used directly rather than a third-party CSV
// library (see DESIGN.md — the corpus offers nothing beyond the standard
// encoder for this narrow a format).
package csvsink

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
)

// Flush thresholds (§4.6.2).
const (
	gamesFlushThreshold = 20_000
	movesFlushThreshold = 1_000_000
	evalsFlushThreshold = 1_000_000
)

// Sink batches GameRow/MoveRow/EvalRow CSV lines and flushes each kind
// independently once its threshold is reached.
type Sink struct {
	store *objectstore.Client
	log   zerolog.Logger

	mu    sync.Mutex
	games []pgnmodel.GameRow
	moves []pgnmodel.MoveRow
	evals []pgnmodel.EvalRow
}

func New(store *objectstore.Client, log zerolog.Logger) *Sink {
	return &Sink{store: store, log: log}
}

// Add appends one parsed game's projected rows to the in-memory buffers,
// flushing any buffer that has crossed its threshold.
func (s *Sink) Add(ctx context.Context, gameID string, game pgnmodel.ParsedGame) error {
	row, moves, evals := pgnmodel.Project(gameID, game)

	s.mu.Lock()
	s.games = append(s.games, row)
	s.moves = append(s.moves, moves...)
	s.evals = append(s.evals, evals...)

	var flushGames []pgnmodel.GameRow
	var flushMoves []pgnmodel.MoveRow
	var flushEvals []pgnmodel.EvalRow

	if len(s.games) >= gamesFlushThreshold {
		flushGames = s.games
		s.games = nil
	}
	if len(s.moves) >= movesFlushThreshold {
		flushMoves = s.moves
		s.moves = nil
	}
	if len(s.evals) >= evalsFlushThreshold {
		flushEvals = s.evals
		s.evals = nil
	}
	s.mu.Unlock()

	if flushGames != nil {
		if err := s.flushGames(ctx, flushGames); err != nil {
			return err
		}
	}
	if flushMoves != nil {
		if err := s.flushMoves(ctx, flushMoves); err != nil {
			return err
		}
	}
	if flushEvals != nil {
		if err := s.flushEvals(ctx, flushEvals); err != nil {
			return err
		}
	}
	return nil
}

func randomKey() (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csvsink: generate key: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func (s *Sink) flushGames(ctx context.Context, rows []pgnmodel.GameRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		var date string
		if r.Date != nil {
			date = strconv.FormatInt(*r.Date, 10)
		}
		if err := w.Write([]string{
			r.ID, r.Opening, r.ECO, r.EventName, r.Link, date, r.Day,
			strconv.FormatUint(uint64(r.WhitePlayerElo), 10),
			strconv.FormatUint(uint64(r.BlackPlayerElo), 10),
			strconv.Itoa(int(r.Result)),
		}); err != nil {
			return fmt.Errorf("csvsink: encode game row %s: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvsink: flush games csv writer: %w", err)
	}
	return s.putCSV(ctx, objectstore.CSVKindGames, buf.Bytes())
}

func (s *Sink) flushMoves(ctx context.Context, rows []pgnmodel.MoveRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		if err := w.Write([]string{
			r.ID, r.GameID, strconv.Itoa(r.MoveID),
			optIntStr(fileToIntPtr(r.FromFile)), optIntStr(rankToIntPtr(r.FromRank)),
			strconv.Itoa(int(r.ToFile)), strconv.Itoa(int(r.ToRank)),
			strconv.FormatBool(r.Capture), optIntStr(roleToIntPtr(r.Promotion)),
			strconv.FormatBool(r.IsCheck), strconv.FormatBool(r.IsCheckmate),
		}); err != nil {
			return fmt.Errorf("csvsink: encode move row %s: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvsink: flush moves csv writer: %w", err)
	}
	return s.putCSV(ctx, objectstore.CSVKindMoves, buf.Bytes())
}

func (s *Sink) flushEvals(ctx context.Context, rows []pgnmodel.EvalRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		var eval, mated string
		if r.EvalCentipawns != nil {
			eval = strconv.FormatFloat(float64(*r.EvalCentipawns), 'f', -1, 32)
		}
		if r.GettingMatedIn != nil {
			mated = strconv.FormatInt(int64(*r.GettingMatedIn), 10)
		}
		if err := w.Write([]string{r.ID, r.GameID, strconv.Itoa(r.MoveID), eval, mated}); err != nil {
			return fmt.Errorf("csvsink: encode eval row %s: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvsink: flush evals csv writer: %w", err)
	}
	return s.putCSV(ctx, objectstore.CSVKindCommentEvals, buf.Bytes())
}

func (s *Sink) putCSV(ctx context.Context, kind objectstore.CSVKind, data []byte) error {
	key, err := randomKey()
	if err != nil {
		return err
	}
	if err := s.store.PutCSVFile(ctx, kind, key, data); err != nil {
		return fmt.Errorf("csvsink: put %s file %s: %w", kind, key, err)
	}
	return nil
}

func optIntStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fileToIntPtr(f *pgnmodel.File) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

func rankToIntPtr(r *pgnmodel.Rank) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}

func roleToIntPtr(r *pgnmodel.Role) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}
