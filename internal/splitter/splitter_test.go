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

package splitter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractRecordSingle(t *testing.T) {
	pgn := "[Event \"x\"]\n\n1. e4 e5\n\n"
	metadata, moves, rest, ok := extractRecord(pgn)
	require.True(t, ok)
	require.Equal(t, "[Event \"x\"]", metadata)
	require.Equal(t, "1. e4 e5", moves)
	require.Equal(t, "", rest)
}

func TestExtractRecordLeavesRemainderForNextRecord(t *testing.T) {
	pgn := "[Event \"x\"]\n\n1. e4 e5\n\n[Event \"y\"]\n\n1. d4 d5\n\n"
	metadata, moves, rest, ok := extractRecord(pgn)
	require.True(t, ok)
	require.Equal(t, "[Event \"x\"]", metadata)
	require.Equal(t, "1. e4 e5", moves)
	require.Equal(t, "[Event \"y\"]\n\n1. d4 d5\n\n", rest)

	metadata2, moves2, rest2, ok2 := extractRecord(rest)
	require.True(t, ok2)
	require.Equal(t, "[Event \"y\"]", metadata2)
	require.Equal(t, "1. d4 d5", moves2)
	require.Equal(t, "", rest2)
}

func TestExtractRecordIncompleteReturnsNotOK(t *testing.T) {
	_, _, rest, ok := extractRecord("[Event \"x\"]\n\n1. e4 e5")
	require.False(t, ok)
	require.Equal(t, "[Event \"x\"]\n\n1. e4 e5", rest)

	_, _, rest, ok = extractRecord("[Event \"x\"]")
	require.False(t, ok)
	require.Equal(t, "[Event \"x\"]", rest)
}

func TestUtf8LossyPassesValidUTF8Through(t *testing.T) {
	b := []byte("hello éè world")
	require.Equal(t, string(b), utf8Lossy(b))
}

func TestUtf8LossyReplacesInvalidBytes(t *testing.T) {
	b := []byte{0xff, 0xfe, 'a'}
	out := utf8Lossy(b)
	require.Contains(t, out, "a")
	require.NotEqual(t, string(b), out)
}
