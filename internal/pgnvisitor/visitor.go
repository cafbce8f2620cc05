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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lichess-archive/chess-pipeline/internal/pgnerr"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
)

// GameVisitor accumulates header, SAN, NAG, and comment callbacks into a
// pgnmodel.ParsedGame builder, exactly the shape described in §4.5: a
// ParsedGame builder, a white/black player builder, a tentative date (with a
// "prefer UTC" flag), a sequence of game entries, and an errors slice.
//
// A Fatal error (malformed Round, unknown Result, malformed TimeControl,
// malformed UTCTime, unknown comment key, unknown NAG code) panics with that
// *pgnerr.Fatal value; callers that need the process to halt on it should not
// recover, per §7. Recoverable errors are appended to errs and do not stop
// the scan; EndGame rejects the whole game if errs is non-empty.
type GameVisitor struct {
	game ParsedGameBuilder

	white playerBuilder
	black playerBuilder

	date            *time.Time
	usedUTCForDate  bool

	entries []pgnmodel.GameEntry
	errs    []error

	result ParsedGame
	built  bool
}

// ParsedGameBuilder mirrors the deferred-build-on-partially-filled-state
// pattern from §9: fields are set incrementally by Header and finalized by
// EndGame.
type ParsedGameBuilder struct {
	eventName       string
	link            string
	date            *int64
	result          pgnmodel.GameResult
	hasResult       bool
	whiteRatingDiff *int32
	blackRatingDiff *int32
	eco             string
	opening         string
	timeControl     *pgnmodel.TimeControl
	termination     pgnmodel.Termination
	hasTermination  bool
}

type playerBuilder struct {
	name  string
	elo   uint32
	title *pgnmodel.PlayerTitle
}

// ParsedGame is an alias kept local to avoid importing pgnmodel twice in
// doc comments above; it is exactly pgnmodel.ParsedGame.
type ParsedGame = pgnmodel.ParsedGame

// NewGameVisitor constructs an empty visitor ready to parse one game.
func NewGameVisitor() *GameVisitor {
	return &GameVisitor{}
}

// Errors returns the recoverable errors accumulated so far.
func (v *GameVisitor) Errors() []error {
	return v.errs
}

// Result returns the finalized ParsedGame. It is only valid after EndGame
// has been called and Errors() is empty.
func (v *GameVisitor) Result() pgnmodel.ParsedGame {
	return v.result
}

func (v *GameVisitor) recoverable(format string, args ...any) {
	v.errs = append(v.errs, pgnerr.NewRecoverable(format, args...))
}

func (v *GameVisitor) fatal(format string, args ...any) {
	panic(pgnerr.NewFatal(format, args...))
}

// Header handles one PGN header tag per the §4.5 table.
func (v *GameVisitor) Header(key, value string) {
	switch key {
	case "Event":
		v.game.eventName = value
	case "Site":
		v.game.link = value
	case "Date":
		if !v.usedUTCForDate {
			d, err := time.Parse("2006.01.02", value)
			if err != nil {
				v.fatal("malformed Date header: %s", value)
			}
			v.date = &d
		}
	case "Round":
		if value != "-" {
			v.fatal("unexpected value for round header: %s", value)
		}
	case "White":
		v.white.name = value
	case "Black":
		v.black.name = value
	case "WhiteElo":
		v.white.elo = mustParseUint(v, value, "WhiteElo")
	case "BlackElo":
		v.black.elo = mustParseUint(v, value, "BlackElo")
	case "WhiteTitle":
		if t, err := pgnmodel.ParsePlayerTitle(value); err != nil {
			v.recoverable("%s", err)
		} else {
			v.white.title = &t
		}
	case "BlackTitle":
		if t, err := pgnmodel.ParsePlayerTitle(value); err != nil {
			v.recoverable("%s", err)
		} else {
			v.black.title = &t
		}
	case "Result":
		switch value {
		case "1-0":
			v.game.result = pgnmodel.WhiteWins
		case "0-1":
			v.game.result = pgnmodel.BlackWins
		case "1/2-1/2":
			v.game.result = pgnmodel.Draw
		case "*":
			v.game.result = pgnmodel.Star
		default:
			v.fatal("unexpected result: %s", value)
		}
		v.game.hasResult = true
	case "UTCDate":
		d, err := time.Parse("2006.01.02", value)
		if err != nil {
			v.fatal("malformed UTCDate header: %s", value)
		}
		v.date = &d
		v.usedUTCForDate = true
	case "UTCTime":
		if !v.usedUTCForDate {
			v.fatal("expected UTCDate header to be parsed before UTCTime")
		}
		t, err := time.Parse("15:04:05", value)
		if err != nil {
			v.fatal("malformed UTCTime header: %s", value)
		}
		combined := time.Date(v.date.Year(), v.date.Month(), v.date.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		seconds := combined.Unix()
		v.game.date = &seconds
	case "WhiteRatingDiff":
		d := mustParseInt(v, value, "WhiteRatingDiff")
		v.game.whiteRatingDiff = &d
	case "BlackRatingDiff":
		d := mustParseInt(v, value, "BlackRatingDiff")
		v.game.blackRatingDiff = &d
	case "ECO":
		v.game.eco = value
	case "Opening":
		v.game.opening = value
	case "TimeControl":
		if value == "-" {
			v.game.timeControl = nil
		} else if plus := strings.IndexByte(value, '+'); plus >= 0 {
			duration, errD := strconv.ParseUint(value[:plus], 10, 32)
			increment, errI := strconv.ParseUint(value[plus+1:], 10, 32)
			if errD != nil || errI != nil {
				v.fatal("malformed TimeControl: %s", value)
			}
			v.game.timeControl = &pgnmodel.TimeControl{DurationSec: uint32(duration), IncrementSec: uint32(increment)}
		} else {
			v.fatal("expected TimeControl to contain '+' or be \"-\": %s", value)
		}
	case "Termination":
		switch value {
		case "Normal":
			v.game.termination = pgnmodel.Normal
			v.game.hasTermination = true
		case "Time forfeit":
			v.game.termination = pgnmodel.TimeForfeit
			v.game.hasTermination = true
		case "Abandoned":
			v.game.termination = pgnmodel.Abandoned
			v.game.hasTermination = true
		case "Unterminated":
			v.game.termination = pgnmodel.Unterminated
			v.game.hasTermination = true
		case "Rules infraction":
			v.game.termination = pgnmodel.RulesInfraction
			v.game.hasTermination = true
		default:
			v.recoverable("Unexpected termination: %s", value)
		}
	default:
		v.recoverable("unexpected header: %s = %s", key, value)
	}
}

func mustParseUint(v *GameVisitor, value, field string) uint32 {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		v.fatal("malformed %s: %s", field, value)
	}
	return uint32(n)
}

func mustParseInt(v *GameVisitor, value, field string) int32 {
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		v.fatal("malformed %s: %s", field, value)
	}
	return int32(n)
}

// token dispatches one whitespace-delimited movetext token: a move number,
// a result marker, a NAG, or a SAN move.
func (v *GameVisitor) token(tok string) {
	if moveNumRe.MatchString(tok) {
		return
	}
	if resultRe.MatchString(tok) {
		return
	}
	if m := nagRe.FindStringSubmatch(tok); m != nil {
		code, _ := strconv.Atoi(m[1])
		v.nag(code)
		return
	}
	v.san(tok)
}

func (v *GameVisitor) nag(code int) {
	var n pgnmodel.Nag
	switch code {
	case 1:
		n = pgnmodel.NagGoodMove
	case 2:
		n = pgnmodel.NagMistake
	case 3:
		n = pgnmodel.NagBrilliantMove
	case 4:
		n = pgnmodel.NagBlunder
	case 5:
		n = pgnmodel.NagSpeculativeMove
	case 6:
		n = pgnmodel.NagDubiousMove
	default:
		v.fatal("unexpected nag: $%d", code)
	}
	v.entries = append(v.entries, pgnmodel.GameEntry{Nag: &n})
}

func (v *GameVisitor) san(tok string) {
	suffix := ""
	if strings.HasSuffix(tok, "+") || strings.HasSuffix(tok, "#") {
		suffix = tok[len(tok)-1:]
	}
	isCheck := suffix == "+"
	isCheckmate := suffix == "#"

	if sanNullRe.MatchString(tok) {
		v.entries = append(v.entries, pgnmodel.GameEntry{San: &pgnmodel.San{IsCheck: isCheck, IsCheckmate: isCheckmate}})
		return
	}

	if m := sanCastleRe.FindStringSubmatch(tok); m != nil {
		side := pgnmodel.KingSide
		if m[1] == "O-O-O" {
			side = pgnmodel.QueenSide
		}
		v.entries = append(v.entries, pgnmodel.GameEntry{San: &pgnmodel.San{
			Castle:      &pgnmodel.CastleSan{Side: side},
			IsCheck:     isCheck,
			IsCheckmate: isCheckmate,
		}})
		return
	}

	if m := sanPutRe.FindStringSubmatch(tok); m != nil {
		role := roleFromLetter(m[1])
		to := squareFromAlgebraic(m[2])
		v.entries = append(v.entries, pgnmodel.GameEntry{San: &pgnmodel.San{
			Put:         &pgnmodel.PutSan{Role: role, To: to},
			IsCheck:     isCheck,
			IsCheckmate: isCheckmate,
		}})
		return
	}

	if m := sanNormalRe.FindStringSubmatch(tok); m != nil {
		role := pgnmodel.Pawn
		if m[1] != "" {
			role = roleFromLetter(m[1])
		}
		var fromFile *pgnmodel.File
		if m[2] != "" {
			f := fileFromLetter(m[2])
			fromFile = &f
		}
		var fromRank *pgnmodel.Rank
		if m[3] != "" {
			r := rankFromDigit(m[3])
			fromRank = &r
		}
		capture := m[4] == "x"
		to := squareFromAlgebraic(m[5])
		var promotion *pgnmodel.Role
		if m[6] != "" {
			p := roleFromLetter(m[6])
			promotion = &p
		}
		v.entries = append(v.entries, pgnmodel.GameEntry{San: &pgnmodel.San{
			Normal: &pgnmodel.NormalSan{
				Role:      role,
				FromFile:  fromFile,
				FromRank:  fromRank,
				Capture:   capture,
				To:        to,
				Promotion: promotion,
			},
			IsCheck:     isCheck,
			IsCheckmate: isCheckmate,
		}})
		return
	}

	v.fatal("unrecognized SAN token: %s", tok)
}

// commentText parses one brace-delimited comment body into its bracketed
// "[%key value]" fragments (§4.5), each producing its own GameEntry.
func (v *GameVisitor) commentText(body string) {
	rest := body
	for {
		start := strings.IndexByte(rest, '[')
		if start < 0 {
			return
		}
		end := strings.IndexByte(rest[start:], ']')
		if end < 0 {
			return
		}
		part := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		sp := strings.IndexByte(part, ' ')
		if sp < 0 {
			v.fatal("malformed comment fragment: %s", part)
		}
		key := part[:sp]
		value := strings.TrimSpace(part[sp+1:])

		switch key {
		case "%clk":
			t, err := time.Parse("15:04:05", value)
			if err != nil {
				v.fatal("malformed clock comment: %s", value)
			}
			secs := uint32(t.Hour()*3600 + t.Minute()*60 + t.Second())
			v.entries = append(v.entries, pgnmodel.GameEntry{Comment: &pgnmodel.Comment{ClockSec: &secs}})
		case "%eval":
			if strings.HasPrefix(value, "#") {
				n, err := strconv.Atoi(value[1:])
				if err != nil {
					v.fatal("malformed mate-in eval comment: %s", value)
				}
				mated := int32(n)
				v.entries = append(v.entries, pgnmodel.GameEntry{Comment: &pgnmodel.Comment{GettingMatedIn: &mated}})
			} else {
				f, err := strconv.ParseFloat(value, 32)
				if err != nil {
					v.fatal("malformed eval comment: %s", value)
				}
				centipawns := float32(f)
				v.entries = append(v.entries, pgnmodel.GameEntry{Comment: &pgnmodel.Comment{EvalCentipawns: &centipawns}})
			}
		default:
			v.fatal("unexpected comment key: %s", key)
		}
	}
}

// EndGame finalizes the builder state into a ParsedGame. If errs is
// non-empty the game is rejected per §4.5 and Result() must not be used.
func (v *GameVisitor) EndGame() {
	if v.built {
		return
	}
	v.built = true
	if len(v.errs) > 0 {
		return
	}
	if !v.game.hasResult {
		v.errs = append(v.errs, pgnerr.NewRecoverable("missing Result header"))
		return
	}

	v.result = pgnmodel.ParsedGame{
		EventName: v.game.eventName,
		Link:      v.game.link,
		Date:      v.game.date,
		WhitePlayer: pgnmodel.Player{
			Name:  v.white.name,
			Elo:   v.white.elo,
			Title: v.white.title,
		},
		BlackPlayer: pgnmodel.Player{
			Name:  v.black.name,
			Elo:   v.black.elo,
			Title: v.black.title,
		},
		Result:          v.game.result,
		WhiteRatingDiff: v.game.whiteRatingDiff,
		BlackRatingDiff: v.game.blackRatingDiff,
		ECO:             v.game.eco,
		Opening:         v.game.opening,
		TimeControl:     v.game.timeControl,
		Termination:     v.game.termination,
		GameEntries:     v.entries,
	}
}

func roleFromLetter(letter string) pgnmodel.Role {
	switch letter {
	case "N":
		return pgnmodel.Knight
	case "B":
		return pgnmodel.Bishop
	case "R":
		return pgnmodel.Rook
	case "Q":
		return pgnmodel.Queen
	case "K":
		return pgnmodel.King
	case "P":
		return pgnmodel.Pawn
	}
	panic(fmt.Sprintf("pgnvisitor: unreachable role letter %q", letter))
}

func fileFromLetter(letter string) pgnmodel.File {
	return pgnmodel.File(letter[0] - 'a')
}

func rankFromDigit(digit string) pgnmodel.Rank {
	return pgnmodel.Rank(digit[0] - '1')
}

func squareFromAlgebraic(sq string) pgnmodel.Square {
	return pgnmodel.Square{File: fileFromLetter(sq[0:1]), Rank: rankFromDigit(sq[1:2])}
}
