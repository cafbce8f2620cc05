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

// Package pgnvisitor implements the visitor-driven state machine (§4.5) that
// turns "metadata\n\nmoves\n\n" PGN text into a pgnmodel.ParsedGame. It
// mirrors the callback shape of the original Rust pgn_reader::Visitor trait:
// a canonical reader scans headers, SAN tokens, NAGs, and bracketed comments
// and drives a GameVisitor that accumulates builder state until end of game.
package pgnvisitor

import (
	"regexp"
	"strings"
)

var headerLineRe = regexp.MustCompile(`\[(\S+)\s+"((?:[^"\\]|\\.)*)"\]`)

var (
	sanNormalRe = regexp.MustCompile(`^([NBRQK])?([a-h])?([1-8])?(x)?([a-h][1-8])(?:=([NBRQ]))?([+#])?$`)
	sanCastleRe = regexp.MustCompile(`^(O-O-O|O-O)([+#])?$`)
	sanPutRe    = regexp.MustCompile(`^([NBRQKP])@([a-h][1-8])([+#])?$`)
	sanNullRe   = regexp.MustCompile(`^(?:--|Z0)([+#])?$`)
	nagRe       = regexp.MustCompile(`^\$(\d+)$`)
	moveNumRe   = regexp.MustCompile(`^\d+\.(\.\.)?$`)
	resultRe    = regexp.MustCompile(`^(1-0|0-1|1/2-1/2|\*)$`)
)

// ReadGame parses a single "metadata\n\nmoves\n\n"-shaped PGN record and
// drives visitor. It returns the visitor's accumulated errors, if any, same
// as GameVisitor.EndGame would; ReadGame always calls EndGame exactly once.
func ReadGame(pgn string, visitor *GameVisitor) []error {
	metadata, moves, _ := splitRecord(pgn)

	for _, m := range headerLineRe.FindAllStringSubmatch(metadata, -1) {
		key := m[1]
		value := unescapeHeaderValue(m[2])
		visitor.Header(key, value)
	}

	tokenizeMoves(moves, visitor)

	visitor.EndGame()
	return visitor.Errors()
}

// splitRecord splits a "metadata\n\nmoves\n\n" record into its two blocks.
// It tolerates a record with or without the trailing blank-line pair, since
// callers may have already trimmed it.
func splitRecord(pgn string) (metadata, moves string, ok bool) {
	idx := strings.Index(pgn, "\n\n")
	if idx < 0 {
		return pgn, "", false
	}
	metadata = pgn[:idx]
	rest := pgn[idx+2:]
	moves = strings.TrimRight(rest, "\n")
	return metadata, moves, true
}

func unescapeHeaderValue(v string) string {
	v = strings.ReplaceAll(v, `\"`, `"`)
	v = strings.ReplaceAll(v, `\\`, `\`)
	return v
}

// tokenizeMoves walks the movetext, peeling off bracketed comments, move
// numbers, NAGs, and SAN tokens in source order and feeding each to visitor.
func tokenizeMoves(moves string, visitor *GameVisitor) {
	i := 0
	n := len(moves)
	for i < n {
		c := moves[i]
		switch {
		case c == ' ' || c == '\n' || c == '\r' || c == '\t':
			i++
		case c == '{':
			end := strings.IndexByte(moves[i:], '}')
			if end < 0 {
				visitor.commentText(moves[i+1:])
				return
			}
			visitor.commentText(moves[i+1 : i+end])
			i += end + 1
		case c == ';':
			end := strings.IndexByte(moves[i:], '\n')
			if end < 0 {
				return
			}
			i += end + 1
		default:
			end := i
			for end < n && !isTokenBoundary(moves[end]) {
				end++
			}
			token := moves[i:end]
			i = end
			if token == "" {
				i++
				continue
			}
			visitor.token(token)
		}
	}
}

func isTokenBoundary(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t' || b == '{' || b == ';'
}
