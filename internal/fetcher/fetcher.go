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

// Package fetcher implements the ingest fetcher (§4.3): it turns a remote
// compressed archive into fixed-size object-storage chunks with an
// accompanying manifest, then publishes archive-file-synced.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
	"github.com/lichess-archive/chess-pipeline/internal/pgnerr"
	"github.com/lichess-archive/chess-pipeline/internal/progress"
)

// Stage runs the fetcher algorithm against one HTTP client, one object
// store, and one producer.
type Stage struct {
	HTTP     *http.Client
	Store    *objectstore.Client
	Producer *broker.Producer
	Log      zerolog.Logger
	Meter    *progress.Meter
}

// syncedEvent is the JSON value published to archive-file-synced (§6.2).
type syncedEvent struct {
	Path        string `json:"path"`
	TotalChunks uint64 `json:"total_chunks"`
}

// logicalPath strips the ".pgn.zst" suffix from a URL path (GLOSSARY).
func logicalPath(rawURL string) string {
	path := rawURL
	if u, err := neturl.Parse(rawURL); err == nil {
		path = u.Path
	}
	return strings.TrimSuffix(path, ".pgn.zst")
}

// doWithRetry issues req, retrying transient failures (network errors and
// 5xx responses) with an exponential backoff capped at two minutes. A 4xx
// response is not retried since the archive host will not change its mind.
func (s *Stage) doWithRetry(req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	bo.InitialInterval = 500 * time.Millisecond

	var resp *http.Response
	op := func() error {
		r, err := s.HTTP.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return fmt.Errorf("server error %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, req.Context())); err != nil {
		return nil, err
	}
	return resp, nil
}

// Process handles one archive-file-index message carrying a source URL.
// It returns nil once the input offset is safe to commit.
func (s *Stage) Process(ctx context.Context, url string) error {
	path := logicalPath(url)

	exists, err := s.Store.ManifestExists(ctx, path)
	if err != nil {
		return fmt.Errorf("fetcher: check manifest %s: %w", path, err)
	}
	if exists {
		// Idempotency gate (§4.3 step 2): tolerates a crash after manifest
		// write but before publish, at the cost of a possible duplicate
		// synced event; downstream consumers are idempotent.
		return s.republishSynced(ctx, path, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetcher: build request for %s: %w", url, err)
	}
	resp, err := s.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("fetcher: GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetcher: GET %s: unexpected status %d", url, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return fmt.Errorf("fetcher: GET %s: missing Content-Length", url)
	}

	totalChunks := uint64((resp.ContentLength + objectstore.ChunkSize - 1) / objectstore.ChunkSize)

	if err := s.Store.PutManifest(ctx, path, totalChunks); err != nil {
		return fmt.Errorf("fetcher: write manifest %s: %w", path, err)
	}

	if err := s.writeChunks(ctx, path, resp.Body, totalChunks); err != nil {
		return err
	}

	return s.publishSynced(ctx, path, totalChunks)
}

// writeChunks accumulates 100MiB buffers from r and writes each as one
// chunk, guarded by the write-once existence check (§4.3 step 5).
func (s *Stage) writeChunks(ctx context.Context, path string, r io.Reader, totalChunks uint64) error {
	buf := make([]byte, 0, objectstore.ChunkSize)
	chunk := make([]byte, 32*1024)
	index := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		exists, err := s.Store.ChunkExists(ctx, path, index)
		if err != nil {
			return fmt.Errorf("fetcher: probe chunk %s/%d: %w", path, index, err)
		}
		if !exists {
			if err := s.Store.PutChunk(ctx, path, index, buf); err != nil {
				return fmt.Errorf("fetcher: write chunk %s/%d: %w", path, index, err)
			}
		}
		s.Meter.Add(1)
		index++
		buf = buf[:0]
		return nil
	}

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			remaining := chunk[:n]
			for len(remaining) > 0 {
				space := objectstore.ChunkSize - len(buf)
				take := len(remaining)
				if take > space {
					take = space
				}
				buf = append(buf, remaining[:take]...)
				remaining = remaining[take:]
				if len(buf) == objectstore.ChunkSize {
					if ferr := flush(); ferr != nil {
						return ferr
					}
				}
			}
		}
		if err == io.EOF {
			if ferr := flush(); ferr != nil {
				return ferr
			}
			break
		}
		if err != nil {
			return fmt.Errorf("fetcher: read body for %s: %w", path, err)
		}
	}

	if uint64(index) != totalChunks {
		// The source changed size mid-download or between runs; resolves
		// the "manifest overwrite" open question by treating a mismatch as
		// corruption rather than silently leaving an inconsistent chunk
		// set (§9).
		return pgnerr.NewFatal("fetcher: %s: wrote %d chunks, manifest declares %d", path, index, totalChunks)
	}
	return nil
}

func (s *Stage) publishSynced(ctx context.Context, path string, totalChunks uint64) error {
	body, err := json.Marshal(syncedEvent{Path: path, TotalChunks: totalChunks})
	if err != nil {
		return fmt.Errorf("fetcher: encode synced event %s: %w", path, err)
	}
	if err := s.Producer.Send(ctx, broker.TopicArchiveFileSynced, []byte(path), body); err != nil {
		return fmt.Errorf("fetcher: publish synced event %s: %w", path, err)
	}
	return nil
}

// republishSynced covers the idempotency-gate retry path: the manifest
// already exists, so no chunks are rewritten, but the Content-Length of
// url is checked against the manifest's implied size first. A mismatch
// means the remote archive changed between runs, leaving a chunk set that
// no longer matches total_chunks; this is treated as corruption rather
// than silently republished (resolves the §9 "manifest overwrite" open
// question).
func (s *Stage) republishSynced(ctx context.Context, path, url string) error {
	totalChunks, err := s.Store.Manifest(ctx, path)
	if err != nil {
		return fmt.Errorf("fetcher: read existing manifest %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("fetcher: build HEAD request for %s: %w", url, err)
	}
	resp, err := s.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("fetcher: HEAD %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK && resp.ContentLength > 0 {
		lowerBound := int64(totalChunks-1) * objectstore.ChunkSize
		upperBound := int64(totalChunks) * objectstore.ChunkSize
		if resp.ContentLength <= lowerBound || resp.ContentLength > upperBound {
			return pgnerr.NewFatal(
				"fetcher: %s: remote Content-Length %d no longer matches manifest of %d chunks",
				path, resp.ContentLength, totalChunks)
		}
	}

	return s.publishSynced(ctx, path, totalChunks)
}
