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

func TestRawGameMessageRoundTrip(t *testing.T) {
	msg := RawGameMessage{
		Metadata: `[Event "x"] [Site "y"] [Result "1-0"]`,
		Moves:    "1. e4 e5 2. Ke2 Ke7 1-0",
	}
	encoded := msg.Encode()
	decoded, err := DecodeRawGameMessage(encoded)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestRawGameMessageContentHashStable(t *testing.T) {
	msg := RawGameMessage{Metadata: "a", Moves: "b"}
	h1 := ContentHashKey(msg.Encode())
	h2 := ContentHashKey(msg.Encode())
	require.Equal(t, h1, h2)

	other := RawGameMessage{Metadata: "a", Moves: "c"}
	require.NotEqual(t, h1, ContentHashKey(other.Encode()))
}

func title(t PlayerTitle) *PlayerTitle { return &t }
func file(f File) *File               { return &f }
func rank(r Rank) *Rank               { return &r }
func role(r Role) *Role               { return &r }
func u32(v uint32) *uint32            { return &v }
func i32(v int32) *int32              { return &v }
func f32(v float32) *float32          { return &v }
func i64(v int64) *int64              { return &v }

// TestParsedGameRoundTrip covers invariant 5 (§8): encode then decode
// equals the original in-memory value, across every shape a ParsedGame's
// fields and GameEntries can take.
func TestParsedGameRoundTrip(t *testing.T) {
	game := ParsedGame{
		EventName: "Rated Blitz game",
		Link:      "https://lichess.org/abcd1234",
		Date:      i64(1672632306),
		WhitePlayer: Player{
			Name:  "alice",
			Elo:   1987,
			Title: title(Grandmaster),
		},
		BlackPlayer: Player{
			Name: "bob",
			Elo:  2001,
		},
		Result:          WhiteWins,
		WhiteRatingDiff: i32(7),
		BlackRatingDiff: i32(-7),
		ECO:             "B90",
		Opening:         "Sicilian Defense: Najdorf Variation",
		TimeControl:     &TimeControl{DurationSec: 300, IncrementSec: 3},
		Termination:     Normal,
		GameEntries: []GameEntry{
			{San: &San{Normal: &NormalSan{Role: Pawn, To: Square{File: FileE, Rank: RankFourth}}}},
			{San: &San{Normal: &NormalSan{
				Role: Knight, FromFile: file(FileG), Capture: true,
				To: Square{File: FileF, Rank: RankThird}, Promotion: nil,
			}}},
			{San: &San{Castle: &CastleSan{Side: KingSide}, IsCheck: true}},
			{San: &San{Put: &PutSan{Role: Knight, To: Square{File: FileD, Rank: RankFifth}}}},
			{San: &San{IsCheckmate: true}}, // null move placeholder
			{Nag: func() *Nag { n := NagBrilliantMove; return &n }()},
			{Comment: &Comment{ClockSec: u32(90)}},
			{Comment: &Comment{EvalCentipawns: f32(1.25)}},
			{Comment: &Comment{GettingMatedIn: i32(5)}},
		},
	}

	encoded := game.Encode()
	decoded, err := DecodeParsedGame(encoded)
	require.NoError(t, err)
	require.Equal(t, game, decoded)
}

func TestParsedGameRoundTripMinimal(t *testing.T) {
	game := ParsedGame{
		Result:      Star,
		Termination: Unterminated,
	}
	encoded := game.Encode()
	decoded, err := DecodeParsedGame(encoded)
	require.NoError(t, err)
	require.Equal(t, game, decoded)
	require.Nil(t, decoded.TimeControl)
	require.Nil(t, decoded.Date)
}

func TestParsedGameRoundTripFromFileFromRank(t *testing.T) {
	game := ParsedGame{
		Result:      Draw,
		Termination: Normal,
		GameEntries: []GameEntry{
			{San: &San{Normal: &NormalSan{
				Role:     Rook,
				FromFile: file(FileA),
				FromRank: rank(RankFirst),
				To:       Square{File: FileA, Rank: RankEighth},
			}}},
			{San: &San{Normal: &NormalSan{
				Role:      Pawn,
				To:        Square{File: FileA, Rank: RankEighth},
				Promotion: role(Queen),
			}}},
		},
	}
	encoded := game.Encode()
	decoded, err := DecodeParsedGame(encoded)
	require.NoError(t, err)
	require.Equal(t, game, decoded)
}

func TestDecodeRawGameMessageRejectsTruncatedLength(t *testing.T) {
	w := &wireWriter{}
	w.stringField(tagRawMetadata, "x")
	encoded := w.buf.Bytes()

	// Drop the trailing byte of the metadata string, leaving the length
	// prefix promising more data than is actually present.
	_, err := DecodeRawGameMessage(encoded[:len(encoded)-1])
	require.Error(t, err)
	require.Contains(t, err.Error(), "truncated bytes for tag")
}

func TestDecodeParsedGameRejectsMalformedVarint(t *testing.T) {
	// A varint-typed key with no following byte at all is an unterminated
	// uvarint.
	w := &wireWriter{}
	w.key(tagGameResult, wireVarint)
	encoded := w.buf.Bytes()

	_, err := DecodeParsedGame(encoded)
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed varint for tag")
}

func TestDecodeRawGameMessageIgnoresUnknownTags(t *testing.T) {
	w := &wireWriter{}
	w.stringField(99, "from-a-future-version")
	w.stringField(tagRawMoves, "1. e4 1-0")
	encoded := w.buf.Bytes()

	decoded, err := DecodeRawGameMessage(encoded)
	require.NoError(t, err)
	require.Equal(t, "1. e4 1-0", decoded.Moves)
	require.Empty(t, decoded.Metadata)
}
