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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
)

// The wire format is a flat tag/varint scheme in the spirit of a minimal
// protobuf: every field is preceded by a key varint encoding
// (fieldNumber<<1 | wireType), where wireType 0 is a raw uvarint and
// wireType 1 is a uvarint length followed by that many raw bytes (used for
// strings and nested messages). Unknown tags are skipped by readers, which
// keeps the tag numbers below stable across versions as required by §6.2.

const (
	wireVarint = 0
	wireBytes  = 1
)

type wireWriter struct {
	buf bytes.Buffer
}

func (w *wireWriter) key(tag uint32, wireType uint8) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(tag)<<1|uint64(wireType))
	w.buf.Write(tmp[:n])
}

func (w *wireWriter) varint(tag uint32, v uint64) {
	w.key(tag, wireVarint)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *wireWriter) boolField(tag uint32, v bool) {
	if !v {
		return
	}
	w.varint(tag, 1)
}

func (w *wireWriter) signedVarint(tag uint32, v int64) {
	w.varint(tag, zigzagEncode(v))
}

func (w *wireWriter) bytesField(tag uint32, v []byte) {
	w.key(tag, wireBytes)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(v)))
	w.buf.Write(tmp[:n])
	w.buf.Write(v)
}

func (w *wireWriter) stringField(tag uint32, v string) {
	if v == "" {
		return
	}
	w.bytesField(tag, []byte(v))
}

func (w *wireWriter) floatField(tag uint32, v float32) {
	w.varint(tag, uint64(math.Float32bits(v)))
}

func (w *wireWriter) nestedField(tag uint32, nested *wireWriter) {
	w.bytesField(tag, nested.buf.Bytes())
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

type wireField struct {
	tag      uint32
	wireType uint8
	varint   uint64
	bytes    []byte
}

func readWireFields(data []byte) ([]wireField, error) {
	var fields []wireField
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		key, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("pgnmodel: malformed wire key: %w", err)
		}
		tag := uint32(key >> 1)
		wireType := uint8(key & 1)
		switch wireType {
		case wireVarint:
			v, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("pgnmodel: malformed varint for tag %d: %w", tag, err)
			}
			fields = append(fields, wireField{tag: tag, wireType: wireType, varint: v})
		case wireBytes:
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("pgnmodel: malformed length for tag %d: %w", tag, err)
			}
			b := make([]byte, n)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("pgnmodel: truncated bytes for tag %d: %w", tag, err)
			}
			fields = append(fields, wireField{tag: tag, wireType: wireType, bytes: b})
		default:
			return nil, fmt.Errorf("pgnmodel: unknown wire type %d for tag %d", wireType, tag)
		}
	}
	return fields, nil
}

// --- RawGameMessage ---

const (
	tagRawMetadata = 1
	tagRawMoves    = 2
)

// Encode serializes a RawGameMessage to the compact wire format.
func (m RawGameMessage) Encode() []byte {
	w := &wireWriter{}
	w.stringField(tagRawMetadata, m.Metadata)
	w.stringField(tagRawMoves, m.Moves)
	return w.buf.Bytes()
}

// DecodeRawGameMessage parses the wire format produced by Encode.
func DecodeRawGameMessage(data []byte) (RawGameMessage, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return RawGameMessage{}, err
	}
	var m RawGameMessage
	for _, f := range fields {
		switch f.tag {
		case tagRawMetadata:
			m.Metadata = string(f.bytes)
		case tagRawMoves:
			m.Moves = string(f.bytes)
		}
	}
	return m, nil
}

// ContentHashKey returns the 64-bit content hash used as the broker key for
// raw-games messages (§3, §6.2): stable per encoded payload.
func ContentHashKey(encoded []byte) uint64 {
	return xxhash.Sum64(encoded)
}

// --- ParsedGame and nested messages ---

const (
	tagGameEvent       = 1
	tagGameLink        = 2
	tagGameDate        = 3
	tagGameWhite       = 4
	tagGameBlack       = 5
	tagGameResult      = 6
	tagGameWhiteDiff   = 7
	tagGameBlackDiff   = 8
	tagGameECO         = 9
	tagGameOpening     = 10
	tagGameTCDuration  = 11
	tagGameTCIncrement = 12
	tagGameHasTC       = 13
	tagGameTermination = 14
	tagGameEntry       = 15
)

const (
	tagPlayerName  = 1
	tagPlayerElo   = 2
	tagPlayerTitle = 3
)

const (
	tagEntrySan     = 1
	tagEntryNag     = 2
	tagEntryComment = 3
)

const (
	tagSanNormal      = 1
	tagSanCastle      = 2
	tagSanPut         = 3
	tagSanIsCheck     = 4
	tagSanIsCheckmate = 5
)

const (
	tagNormalRole      = 1
	tagNormalFromFile  = 2
	tagNormalFromRank  = 3
	tagNormalCapture   = 4
	tagNormalToFile    = 5
	tagNormalToRank    = 6
	tagNormalPromotion = 7
)

const (
	tagCastleSide = 1
)

const (
	tagPutRole   = 1
	tagPutToFile = 2
	tagPutToRank = 3
)

const (
	tagCommentClock          = 1
	tagCommentEvalCentipawns = 2
	tagCommentMatedIn        = 3
)

func writePlayer(w *wireWriter, tag uint32, p Player) {
	nested := &wireWriter{}
	nested.stringField(tagPlayerName, p.Name)
	nested.varint(tagPlayerElo, uint64(p.Elo))
	if p.Title != nil {
		nested.varint(tagPlayerTitle, uint64(*p.Title))
	}
	w.nestedField(tag, nested)
}

func readPlayer(data []byte) (Player, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return Player{}, err
	}
	var p Player
	for _, f := range fields {
		switch f.tag {
		case tagPlayerName:
			p.Name = string(f.bytes)
		case tagPlayerElo:
			p.Elo = uint32(f.varint)
		case tagPlayerTitle:
			t := PlayerTitle(f.varint)
			p.Title = &t
		}
	}
	return p, nil
}

func writeSquare(w *wireWriter, fileTag, rankTag uint32, sq Square) {
	w.varint(fileTag, uint64(sq.File))
	w.varint(rankTag, uint64(sq.Rank))
}

func writeSan(w *wireWriter, tag uint32, s San) {
	nested := &wireWriter{}
	switch {
	case s.Normal != nil:
		n := &wireWriter{}
		n.varint(tagNormalRole, uint64(s.Normal.Role))
		if s.Normal.FromFile != nil {
			n.varint(tagNormalFromFile, uint64(*s.Normal.FromFile)+1)
		}
		if s.Normal.FromRank != nil {
			n.varint(tagNormalFromRank, uint64(*s.Normal.FromRank)+1)
		}
		n.boolField(tagNormalCapture, s.Normal.Capture)
		n.varint(tagNormalToFile, uint64(s.Normal.To.File))
		n.varint(tagNormalToRank, uint64(s.Normal.To.Rank))
		if s.Normal.Promotion != nil {
			n.varint(tagNormalPromotion, uint64(*s.Normal.Promotion))
		}
		nested.nestedField(tagSanNormal, n)
	case s.Castle != nil:
		n := &wireWriter{}
		n.varint(tagCastleSide, uint64(s.Castle.Side))
		nested.nestedField(tagSanCastle, n)
	case s.Put != nil:
		n := &wireWriter{}
		n.varint(tagPutRole, uint64(s.Put.Role))
		n.varint(tagPutToFile, uint64(s.Put.To.File))
		n.varint(tagPutToRank, uint64(s.Put.To.Rank))
		nested.nestedField(tagSanPut, n)
	}
	nested.boolField(tagSanIsCheck, s.IsCheck)
	nested.boolField(tagSanIsCheckmate, s.IsCheckmate)
	w.nestedField(tag, nested)
}

func readSan(data []byte) (San, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return San{}, err
	}
	var s San
	for _, f := range fields {
		switch f.tag {
		case tagSanNormal:
			nfields, err := readWireFields(f.bytes)
			if err != nil {
				return San{}, err
			}
			n := &NormalSan{}
			for _, nf := range nfields {
				switch nf.tag {
				case tagNormalRole:
					n.Role = Role(nf.varint)
				case tagNormalFromFile:
					v := File(nf.varint - 1)
					n.FromFile = &v
				case tagNormalFromRank:
					v := Rank(nf.varint - 1)
					n.FromRank = &v
				case tagNormalCapture:
					n.Capture = true
				case tagNormalToFile:
					n.To.File = File(nf.varint)
				case tagNormalToRank:
					n.To.Rank = Rank(nf.varint)
				case tagNormalPromotion:
					v := Role(nf.varint)
					n.Promotion = &v
				}
			}
			s.Normal = n
		case tagSanCastle:
			cfields, err := readWireFields(f.bytes)
			if err != nil {
				return San{}, err
			}
			c := &CastleSan{}
			for _, cf := range cfields {
				if cf.tag == tagCastleSide {
					c.Side = CastlingSide(cf.varint)
				}
			}
			s.Castle = c
		case tagSanPut:
			pfields, err := readWireFields(f.bytes)
			if err != nil {
				return San{}, err
			}
			p := &PutSan{}
			for _, pf := range pfields {
				switch pf.tag {
				case tagPutRole:
					p.Role = Role(pf.varint)
				case tagPutToFile:
					p.To.File = File(pf.varint)
				case tagPutToRank:
					p.To.Rank = Rank(pf.varint)
				}
			}
			s.Put = p
		case tagSanIsCheck:
			s.IsCheck = true
		case tagSanIsCheckmate:
			s.IsCheckmate = true
		}
	}
	return s, nil
}

func writeComment(w *wireWriter, tag uint32, c Comment) {
	nested := &wireWriter{}
	if c.ClockSec != nil {
		nested.varint(tagCommentClock, uint64(*c.ClockSec)+1)
	}
	if c.EvalCentipawns != nil {
		nested.floatField(tagCommentEvalCentipawns, *c.EvalCentipawns)
	}
	if c.GettingMatedIn != nil {
		nested.signedVarint(tagCommentMatedIn, int64(*c.GettingMatedIn))
	}
	w.nestedField(tag, nested)
}

func readComment(data []byte) (Comment, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return Comment{}, err
	}
	var c Comment
	for _, f := range fields {
		switch f.tag {
		case tagCommentClock:
			v := uint32(f.varint - 1)
			c.ClockSec = &v
		case tagCommentEvalCentipawns:
			v := math.Float32frombits(uint32(f.varint))
			c.EvalCentipawns = &v
		case tagCommentMatedIn:
			v := int32(zigzagDecode(f.varint))
			c.GettingMatedIn = &v
		}
	}
	return c, nil
}

func writeEntry(w *wireWriter, e GameEntry) {
	nested := &wireWriter{}
	switch {
	case e.San != nil:
		writeSan(nested, tagEntrySan, *e.San)
	case e.Nag != nil:
		nested.varint(tagEntryNag, uint64(*e.Nag))
	case e.Comment != nil:
		writeComment(nested, tagEntryComment, *e.Comment)
	}
	w.nestedField(tagGameEntry, nested)
}

func readEntry(data []byte) (GameEntry, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return GameEntry{}, err
	}
	var e GameEntry
	for _, f := range fields {
		switch f.tag {
		case tagEntrySan:
			s, err := readSan(f.bytes)
			if err != nil {
				return GameEntry{}, err
			}
			e.San = &s
		case tagEntryNag:
			n := Nag(f.varint)
			e.Nag = &n
		case tagEntryComment:
			c, err := readComment(f.bytes)
			if err != nil {
				return GameEntry{}, err
			}
			e.Comment = &c
		}
	}
	return e, nil
}

// Encode serializes a ParsedGame to the compact wire format.
func (g ParsedGame) Encode() []byte {
	w := &wireWriter{}
	w.stringField(tagGameEvent, g.EventName)
	w.stringField(tagGameLink, g.Link)
	if g.Date != nil {
		w.signedVarint(tagGameDate, *g.Date)
	}
	writePlayer(w, tagGameWhite, g.WhitePlayer)
	writePlayer(w, tagGameBlack, g.BlackPlayer)
	w.varint(tagGameResult, uint64(g.Result))
	if g.WhiteRatingDiff != nil {
		w.signedVarint(tagGameWhiteDiff, int64(*g.WhiteRatingDiff))
	}
	if g.BlackRatingDiff != nil {
		w.signedVarint(tagGameBlackDiff, int64(*g.BlackRatingDiff))
	}
	w.stringField(tagGameECO, g.ECO)
	w.stringField(tagGameOpening, g.Opening)
	if g.TimeControl != nil {
		w.boolField(tagGameHasTC, true)
		w.varint(tagGameTCDuration, uint64(g.TimeControl.DurationSec))
		w.varint(tagGameTCIncrement, uint64(g.TimeControl.IncrementSec))
	}
	w.varint(tagGameTermination, uint64(g.Termination))
	for _, e := range g.GameEntries {
		writeEntry(w, e)
	}
	return w.buf.Bytes()
}

// DecodeParsedGame parses the wire format produced by Encode.
func DecodeParsedGame(data []byte) (ParsedGame, error) {
	fields, err := readWireFields(data)
	if err != nil {
		return ParsedGame{}, err
	}
	var g ParsedGame
	var hasTC bool
	var tcDuration, tcIncrement uint64
	for _, f := range fields {
		switch f.tag {
		case tagGameEvent:
			g.EventName = string(f.bytes)
		case tagGameLink:
			g.Link = string(f.bytes)
		case tagGameDate:
			v := zigzagDecode(f.varint)
			g.Date = &v
		case tagGameWhite:
			p, err := readPlayer(f.bytes)
			if err != nil {
				return ParsedGame{}, err
			}
			g.WhitePlayer = p
		case tagGameBlack:
			p, err := readPlayer(f.bytes)
			if err != nil {
				return ParsedGame{}, err
			}
			g.BlackPlayer = p
		case tagGameResult:
			g.Result = GameResult(f.varint)
		case tagGameWhiteDiff:
			v := int32(zigzagDecode(f.varint))
			g.WhiteRatingDiff = &v
		case tagGameBlackDiff:
			v := int32(zigzagDecode(f.varint))
			g.BlackRatingDiff = &v
		case tagGameECO:
			g.ECO = string(f.bytes)
		case tagGameOpening:
			g.Opening = string(f.bytes)
		case tagGameHasTC:
			hasTC = true
		case tagGameTCDuration:
			tcDuration = f.varint
		case tagGameTCIncrement:
			tcIncrement = f.varint
		case tagGameTermination:
			g.Termination = Termination(f.varint)
		case tagGameEntry:
			e, err := readEntry(f.bytes)
			if err != nil {
				return ParsedGame{}, err
			}
			g.GameEntries = append(g.GameEntries, e)
		}
	}
	if hasTC {
		g.TimeControl = &TimeControl{DurationSec: uint32(tcDuration), IncrementSec: uint32(tcIncrement)}
	}
	return g, nil
}
