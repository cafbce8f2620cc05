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

package csvsink

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
)

func TestRandomKeyShapeAndUniqueness(t *testing.T) {
	a, err := randomKey()
	require.NoError(t, err)
	require.Len(t, a, 16)

	b, err := randomKey()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	for _, r := range a {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		require.True(t, isAlnum, "unexpected character %q in generated key", r)
	}
}

// TestAddBuffersBelowThresholdWithoutFlushing exercises the accumulation
// path of Add without crossing any of the §4.6.2 flush thresholds, so no
// object-storage call is made (store is intentionally nil here).
func TestAddBuffersBelowThresholdWithoutFlushing(t *testing.T) {
	s := New(nil, zerolog.Nop())

	game := pgnmodel.ParsedGame{
		Result:      pgnmodel.WhiteWins,
		Termination: pgnmodel.Normal,
		GameEntries: []pgnmodel.GameEntry{
			{San: &pgnmodel.San{Normal: &pgnmodel.NormalSan{
				Role: pgnmodel.Pawn,
				To:   pgnmodel.Square{File: pgnmodel.FileE, Rank: pgnmodel.RankFourth},
			}}},
		},
	}

	err := s.Add(context.Background(), "game-1", game)
	require.NoError(t, err)
	require.Len(t, s.games, 1)
	require.Len(t, s.moves, 1)
	require.Empty(t, s.evals)
}
