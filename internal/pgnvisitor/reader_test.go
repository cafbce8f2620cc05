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

package pgnvisitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
)

// TestMinimalGame covers spec §8 scenario S1.
func TestMinimalGame(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\n1. e4 e5 2. Ke2 Ke7 1-0\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.Equal(t, pgnmodel.WhiteWins, game.Result)
	require.Nil(t, game.Date)

	var sanCount int
	for i, e := range game.GameEntries {
		require.NotNil(t, e.San, "entry %d should be a SAN move", i)
		sanCount++
	}
	require.Equal(t, 4, sanCount)
}

// TestUTCDateTimeOrdering covers scenario S2: Date is superseded by
// UTCDate+UTCTime when both are present.
func TestUTCDateTimeOrdering(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"] " +
		"[Date \"2023.01.02\"] [UTCDate \"2023.01.03\"] [UTCTime \"04:05:06\"]\n\n1. e4 1-0\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.NotNil(t, game.Date)

	row, _, _ := pgnmodel.Project("g1", game)
	require.Equal(t, "2023-01-03", row.Day)
}

// TestUnknownTermination covers scenario S3: the game is rejected with a
// single recoverable error and the exact message text the spec prescribes.
func TestUnknownTermination(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"] [Termination \"Weird\"]\n\n1. e4 1-0\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Len(t, errs, 1)
	require.EqualError(t, errs[0], "Unexpected termination: Weird")
}

// TestCommentParsing covers scenario S4: a clock-then-eval comment
// produces one GameEntry per bracketed fragment, in order.
func TestCommentParsing(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\n" +
		"1. e4 { [%clk 0:01:30] [%eval #5] } e5 1-0\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.Len(t, game.GameEntries, 4)

	require.NotNil(t, game.GameEntries[0].San)
	require.NotNil(t, game.GameEntries[1].Comment)
	require.NotNil(t, game.GameEntries[1].Comment.ClockSec)
	require.Equal(t, uint32(90), *game.GameEntries[1].Comment.ClockSec)
	require.NotNil(t, game.GameEntries[2].Comment)
	require.NotNil(t, game.GameEntries[2].Comment.GettingMatedIn)
	require.Equal(t, int32(5), *game.GameEntries[2].Comment.GettingMatedIn)
	require.NotNil(t, game.GameEntries[3].San)
}

// TestUnknownHeaderTag covers scenario S6 (negative half of §8 invariant
// 6): an unrecognized header tag is a recoverable error, not fatal.
func TestUnknownHeaderTag(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"] [Annotator \"someone\"]\n\n1. e4 1-0\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Annotator")
}

// TestEloAndRatingDiffAndTimeControl exercises the remaining recognized
// header tags from the §4.5 table in one pass.
func TestEloAndRatingDiffAndTimeControl(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"0-1\"] " +
		"[White \"alice\"] [Black \"bob\"] [WhiteElo \"1987\"] [BlackElo \"2001\"] " +
		"[WhiteTitle \"GM\"] [BlackRatingDiff \"-7\"] [WhiteRatingDiff \"7\"] " +
		"[ECO \"B90\"] [Opening \"Sicilian Defense\"] [TimeControl \"300+3\"] " +
		"[Termination \"Normal\"]\n\n1. e4 c5 0-1\n\n"

	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.Equal(t, pgnmodel.BlackWins, game.Result)
	require.Equal(t, "alice", game.WhitePlayer.Name)
	require.Equal(t, uint32(1987), game.WhitePlayer.Elo)
	require.NotNil(t, game.WhitePlayer.Title)
	require.Equal(t, pgnmodel.Grandmaster, *game.WhitePlayer.Title)
	require.Equal(t, int32(7), *game.WhiteRatingDiff)
	require.Equal(t, int32(-7), *game.BlackRatingDiff)
	require.Equal(t, "B90", game.ECO)
	require.NotNil(t, game.TimeControl)
	require.Equal(t, uint32(300), game.TimeControl.DurationSec)
	require.Equal(t, uint32(3), game.TimeControl.IncrementSec)
	require.Equal(t, pgnmodel.Normal, game.Termination)
}

func TestTimeControlDashMeansNone(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"*\"] [TimeControl \"-\"]\n\n1. e4 *\n\n"
	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)
	require.Nil(t, v.Result().TimeControl)
}

func TestCastlingAndCheckmateSuffix(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\nO-O O-O-O# 1-0\n\n"
	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.Len(t, game.GameEntries, 2)
	require.NotNil(t, game.GameEntries[0].San.Castle)
	require.Equal(t, pgnmodel.KingSide, game.GameEntries[0].San.Castle.Side)
	require.NotNil(t, game.GameEntries[1].San.Castle)
	require.Equal(t, pgnmodel.QueenSide, game.GameEntries[1].San.Castle.Side)
	require.True(t, game.GameEntries[1].San.IsCheckmate)
}

func TestMalformedRoundIsFatal(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"] [Round \"3\"]\n\n1. e4 1-0\n\n"
	v := NewGameVisitor()
	require.Panics(t, func() {
		ReadGame(pgn, v)
	})
}

func TestUnknownResultIsFatal(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"?\"]\n\n1. e4 1-0\n\n"
	v := NewGameVisitor()
	require.Panics(t, func() {
		ReadGame(pgn, v)
	})
}

func TestUnknownNagIsFatal(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\n1. e4 $99 1-0\n\n"
	v := NewGameVisitor()
	require.Panics(t, func() {
		ReadGame(pgn, v)
	})
}

func TestUnknownCommentKeyIsFatal(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\n1. e4 { [%foo bar] } 1-0\n\n"
	v := NewGameVisitor()
	require.Panics(t, func() {
		ReadGame(pgn, v)
	})
}

func TestMissingResultIsRecoverable(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"]\n\n1. e4 e5\n\n"
	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Len(t, errs, 1)
}

func TestHeaderValueUnescaping(t *testing.T) {
	pgn := `[Event "Bob \"the bot\" Smith memorial"] [Site "y"] [Result "1-0"]` + "\n\n1. e4 1-0\n\n"
	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)
	require.Equal(t, `Bob "the bot" Smith memorial`, v.Result().EventName)
}

func TestPromotionAndDisambiguatedSAN(t *testing.T) {
	pgn := "[Event \"x\"] [Site \"y\"] [Result \"1-0\"]\n\nRaxe8=Q+ 1-0\n\n"
	v := NewGameVisitor()
	errs := ReadGame(pgn, v)
	require.Empty(t, errs)

	game := v.Result()
	require.Len(t, game.GameEntries, 1)
	san := game.GameEntries[0].San
	require.NotNil(t, san.Normal)
	require.Equal(t, pgnmodel.Rook, san.Normal.Role)
	require.True(t, san.Normal.Capture)
	require.NotNil(t, san.Normal.FromFile)
	require.Equal(t, pgnmodel.FileA, *san.Normal.FromFile)
	require.Nil(t, san.Normal.FromRank)
	require.Equal(t, pgnmodel.Square{File: pgnmodel.FileE, Rank: pgnmodel.RankEighth}, san.Normal.To)
	require.NotNil(t, san.Normal.Promotion)
	require.Equal(t, pgnmodel.Queen, *san.Normal.Promotion)
}
