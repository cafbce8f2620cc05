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

// Package splitter implements the game splitter (§4.4): it streams a
// decompressed archive, slices it into PGN records on the "\n\n"-delimited
// boundary, and publishes them exactly-once inside broker transactions,
// checkpointing games_produced in object storage.
package splitter

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

// batchSize bounds a transactional publish (§4.4).
const batchSize = 16

// checkpointInterval is the minimum wall-clock gap between persisted
// checkpoints (§3).
const checkpointInterval = 60 * time.Second

// readBufSize is the size of the decompression scratch buffer (§4.4).
const readBufSize = 1024

// Stage runs the splitter algorithm against one object store and one
// broker client; a fresh TransactionalProducer is built per input message
// so each carries its own per-run unique transactional id.
type Stage struct {
	Store  *objectstore.Client
	Broker *broker.Client
	Log    zerolog.Logger
	Meter  *progress.Meter
}

// Process handles one archive-file-synced message.
func (s *Stage) Process(ctx context.Context, logicalPath string, totalChunks uint64) error {
	gamesToSkip, err := s.Store.GetSplitCheckpoint(ctx, logicalPath)
	if err != nil {
		return fmt.Errorf("splitter: read checkpoint %s: %w", logicalPath, err)
	}

	reader := objectstore.NewChunkReader(ctx, s.Store, logicalPath, int(totalChunks))
	zr, err := zstd.NewReader(reader)
	if err != nil {
		return fmt.Errorf("splitter: init zstd decoder %s: %w", logicalPath, err)
	}
	defer zr.Close()

	txID := fmt.Sprintf("chunk-splitter-%s", uuid.NewString())
	producer, err := s.Broker.NewTransactionalProducer(txID)
	if err != nil {
		return fmt.Errorf("splitter: create transactional producer %s: %w", logicalPath, err)
	}
	defer producer.Close()

	var (
		pgn            strings.Builder
		gamesProduced  uint64
		buf            = make([]byte, readBufSize)
		batch          []broker.Record
		lastCheckpoint = time.Now()
	)

	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := producer.SendBatch(ctx, batch); err != nil {
			return fmt.Errorf("splitter: publish batch %s: %w", logicalPath, err)
		}
		s.Meter.Add(int64(len(batch)))
		batch = batch[:0]
		return nil
	}

	persistCheckpoint := func(force bool) error {
		if !force && time.Since(lastCheckpoint) < checkpointInterval {
			return nil
		}
		if err := s.Store.PutSplitCheckpoint(ctx, logicalPath, gamesProduced); err != nil {
			return fmt.Errorf("splitter: persist checkpoint %s: %w", logicalPath, err)
		}
		lastCheckpoint = time.Now()
		return nil
	}

	for {
		n, readErr := zr.Read(buf)
		if n > 0 {
			pgn.WriteString(utf8Lossy(buf[:n]))

			for {
				metadata, moves, rest, ok := extractRecord(pgn.String())
				if !ok {
					break
				}
				pgn.Reset()
				pgn.WriteString(rest)

				msg := pgnmodel.RawGameMessage{Metadata: metadata, Moves: moves}
				encoded := msg.Encode()
				key := pgnmodel.ContentHashKey(encoded)

				gamesProduced++
				if gamesProduced > gamesToSkip {
					keyBytes := make([]byte, 8)
					binary.BigEndian.PutUint64(keyBytes, key)
					batch = append(batch, broker.Record{
						Topic: broker.TopicRawGames,
						Key:   keyBytes,
						Value: encoded,
					})
				}

				if len(batch) >= batchSize {
					if err := flushBatch(); err != nil {
						return err
					}
				}
			}

			if err := persistCheckpoint(false); err != nil {
				return err
			}
		}
		if readErr != nil {
			break
		}
	}

	if err := flushBatch(); err != nil {
		return err
	}
	if err := persistCheckpoint(true); err != nil {
		return err
	}
	return nil
}

// recordBoundary is the delimiter between PGN metadata and moves blocks,
// and between one record's moves and the next record's metadata (§4.4).
const recordBoundary = "\n\n"

// extractRecord pulls the first complete "<metadata>\n\n<moves>\n\n" record
// off the front of pgn, if one is present.
func extractRecord(pgn string) (metadata, moves, rest string, ok bool) {
	firstGap := strings.Index(pgn, recordBoundary)
	if firstGap < 0 {
		return "", "", pgn, false
	}
	metadata = pgn[:firstGap]
	afterMeta := pgn[firstGap+len(recordBoundary):]

	secondGap := strings.Index(afterMeta, recordBoundary)
	if secondGap < 0 {
		return "", "", pgn, false
	}
	moves = afterMeta[:secondGap]
	rest = afterMeta[secondGap+len(recordBoundary):]
	return metadata, moves, rest, true
}

// utf8Lossy replaces any invalid UTF-8 sequence in b, matching the spec's
// "append lossy-UTF8 string" requirement for decompressed bytes that may
// straddle a multi-byte rune across read-buffer boundaries.
func utf8Lossy(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte("�")))
}
