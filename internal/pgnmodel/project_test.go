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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProjectMoveIndexing covers §8 invariant 7: MoveID equals the
// 1-based index of the containing SAN within GameEntries, with comments
// and NAGs still advancing the index.
func TestProjectMoveIndexing(t *testing.T) {
	goodMove := NagGoodMove
	game := ParsedGame{
		Result:      WhiteWins,
		Termination: Normal,
		GameEntries: []GameEntry{
			{San: &San{Normal: &NormalSan{Role: Pawn, To: Square{File: FileE, Rank: RankFourth}}}}, // 1
			{Nag: &goodMove}, // 2
			{Comment: &Comment{ClockSec: u32(90)}}, // 3, no eval -> no EvalRow
			{San: &San{Normal: &NormalSan{Role: Pawn, To: Square{File: FileE, Rank: RankFifth}}}}, // 4
			{Comment: &Comment{EvalCentipawns: f32(0.3)}}, // 5
		},
	}

	row, moves, evals := Project("g1", game)
	require.Equal(t, "g1", row.ID)

	require.Len(t, moves, 2)
	require.Equal(t, 1, moves[0].MoveID)
	require.Equal(t, 4, moves[1].MoveID)

	require.Len(t, evals, 1)
	require.Equal(t, 5, evals[0].MoveID)
}

func TestProjectDayPartitionKey(t *testing.T) {
	game := ParsedGame{
		Result:      Draw,
		Termination: Normal,
		Date:        i64(1672718706), // 2023-01-03T04:05:06Z
	}
	row, _, _ := Project("g2", game)
	require.Equal(t, "2023-01-03", row.Day)
	require.NotNil(t, row.Date)
}

func TestProjectNoDateLeavesDayEmpty(t *testing.T) {
	game := ParsedGame{Result: Draw, Termination: Normal}
	row, _, _ := Project("g3", game)
	require.Empty(t, row.Day)
}

func TestProjectNullMoveProducesNoRow(t *testing.T) {
	game := ParsedGame{
		Result:      Draw,
		Termination: Normal,
		GameEntries: []GameEntry{
			{San: &San{IsCheckmate: true}}, // null move placeholder, opaque
		},
	}
	_, moves, evals := Project("g4", game)
	require.Empty(t, moves)
	require.Empty(t, evals)
}
