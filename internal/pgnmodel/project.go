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

package pgnmodel

import (
	"fmt"
	"time"
)

// Project flattens a ParsedGame into the row shapes every sink writes
// (§4.6). gameID is the sink-computed identifier (base64 of the broker
// message key for the relational sink, per §4.6.1). MoveRow/EvalRow ids are
// derived as "{gameID}:{MoveID}" so repeated delivery of the same
// parsed-games message produces the same row ids, making ON CONFLICT DO
// NOTHING safe against such duplicates (§7).
func Project(gameID string, g ParsedGame) (GameRow, []MoveRow, []EvalRow) {
	row := GameRow{
		ID:             gameID,
		Opening:        g.Opening,
		ECO:            g.ECO,
		EventName:      g.EventName,
		Link:           g.Link,
		Date:           g.Date,
		WhitePlayerElo: g.WhitePlayer.Elo,
		BlackPlayerElo: g.BlackPlayer.Elo,
		Result:         g.Result,
	}
	if g.Date != nil {
		row.Day = time.Unix(*g.Date, 0).UTC().Format("2006-01-02")
	}

	var moves []MoveRow
	var evals []EvalRow

	for i, entry := range g.GameEntries {
		moveID := i + 1
		id := fmt.Sprintf("%s:%d", gameID, moveID)

		switch {
		case entry.San != nil && entry.San.Normal != nil:
			n := entry.San.Normal
			moves = append(moves, MoveRow{
				ID:          id,
				GameID:      gameID,
				MoveID:      moveID,
				FromFile:    n.FromFile,
				FromRank:    n.FromRank,
				ToFile:      n.To.File,
				ToRank:      n.To.Rank,
				Capture:     n.Capture,
				Promotion:   n.Promotion,
				IsCheck:     entry.San.IsCheck,
				IsCheckmate: entry.San.IsCheckmate,
			})
		case entry.Comment != nil && (entry.Comment.EvalCentipawns != nil || entry.Comment.GettingMatedIn != nil):
			evals = append(evals, EvalRow{
				ID:             id,
				GameID:         gameID,
				MoveID:         moveID,
				EvalCentipawns: entry.Comment.EvalCentipawns,
				GettingMatedIn: entry.Comment.GettingMatedIn,
			})
		}
	}

	return row, moves, evals
}
