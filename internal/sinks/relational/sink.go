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

// Package relational implements the relational sink (§4.6.1): each
// consumer task holds its own Postgres connection and writes a game's
// move rows and then its game row per parsed-games message, tolerating
// duplicates via ON CONFLICT DO NOTHING.
package relational

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

const insertGameSQL = `
INSERT INTO chess_games (id, opening, eco, event_name, link, played_at, day, white_player_elo, black_player_elo, result)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

const insertMoveSQL = `
INSERT INTO chess_game_moves (id, game_id, move_id, from_file, from_rank, to_file, to_rank, capture, promotion, is_check, is_checkmate)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING`

// Worker holds one consumer task's dedicated connection and prepared
// statements (§4.6.1: "Statements are prepared once per connection").
type Worker struct {
	db        *sqlx.DB
	insertGame *sqlx.Stmt
	insertMove *sqlx.Stmt
	Log       zerolog.Logger
	Meter     *progress.Meter
}

// NewWorker opens a dedicated connection to connStr and prepares both
// statements on it.
func NewWorker(ctx context.Context, connStr string, log zerolog.Logger, meter *progress.Meter) (*Worker, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("relational: connect: %w", err)
	}
	insertGame, err := db.PreparexContext(ctx, insertGameSQL)
	if err != nil {
		return nil, fmt.Errorf("relational: prepare game insert: %w", err)
	}
	insertMove, err := db.PreparexContext(ctx, insertMoveSQL)
	if err != nil {
		return nil, fmt.Errorf("relational: prepare move insert: %w", err)
	}
	return &Worker{db: db, insertGame: insertGame, insertMove: insertMove, Log: log, Meter: meter}, nil
}

func (w *Worker) Close() error {
	return w.db.Close()
}

// Write inserts the move rows then the game row for one parsed-games
// message keyed by messageKey, matching §4.6.1's step order (moves before
// the game row); both writes must succeed before the caller commits the
// consumer offset (§4.6.1 step 4).
func (w *Worker) Write(ctx context.Context, messageKey []byte, game pgnmodel.ParsedGame) error {
	gameID := base64.StdEncoding.EncodeToString(messageKey)
	row, moves, _ := pgnmodel.Project(gameID, game)

	for _, m := range moves {
		if _, err := w.insertMove.ExecContext(ctx,
			m.ID, m.GameID, m.MoveID, fileParam(m.FromFile), rankParam(m.FromRank), int(m.ToFile), int(m.ToRank),
			m.Capture, roleParam(m.Promotion), m.IsCheck, m.IsCheckmate,
		); err != nil {
			return fmt.Errorf("relational: insert move %s: %w", m.ID, err)
		}
	}

	if _, err := w.insertGame.ExecContext(ctx,
		row.ID, row.Opening, row.ECO, row.EventName, row.Link, row.Date, row.Day,
		row.WhitePlayerElo, row.BlackPlayerElo, int(row.Result),
	); err != nil {
		return fmt.Errorf("relational: insert game %s: %w", gameID, err)
	}

	w.Meter.Add(1)
	return nil
}

func fileParam(f *pgnmodel.File) any {
	if f == nil {
		return nil
	}
	return int(*f)
}

func rankParam(r *pgnmodel.Rank) any {
	if r == nil {
		return nil
	}
	return int(*r)
}

func roleParam(r *pgnmodel.Role) any {
	if r == nil {
		return nil
	}
	return int(*r)
}
