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

package objectstore

import (
	"context"
	"fmt"
	"io"
)

// chunkFetch is one background prefetch result.
type chunkFetch struct {
	data []byte
	err  error
}

// ChunkReader presents chunk_0..chunk_{n-1} of a logical path as one
// contiguous io.Reader, prefetching the next chunk on a background
// goroutine while the current one drains (option (b) from §4.2).
type ChunkReader struct {
	ctx         context.Context
	client      *Client
	logicalPath string
	totalChunks int

	next      int
	cur       []byte
	curOff    int
	prefetch  chan chunkFetch
	done      bool
}

// NewChunkReader constructs a reader over chunks [0, totalChunks).
func NewChunkReader(ctx context.Context, client *Client, logicalPath string, totalChunks int) *ChunkReader {
	r := &ChunkReader{
		ctx:         ctx,
		client:      client,
		logicalPath: logicalPath,
		totalChunks: totalChunks,
	}
	if totalChunks > 0 {
		r.next = 1
		r.startPrefetch()
	}
	return r
}

func (r *ChunkReader) startPrefetch() {
	r.prefetch = make(chan chunkFetch, 1)
	if r.next >= r.totalChunks {
		r.prefetch <- chunkFetch{data: nil, err: io.EOF}
		return
	}
	idx := r.next
	r.next++
	go func() {
		data, err := r.client.GetChunk(r.ctx, r.logicalPath, idx)
		r.prefetch <- chunkFetch{data: data, err: err}
	}()
}

// Read implements io.Reader, fetching chunk 0 synchronously on first call
// and otherwise draining whatever the background prefetch has produced.
func (r *ChunkReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if r.cur == nil {
		if r.totalChunks == 0 {
			r.done = true
			return 0, io.EOF
		}
		data, err := r.client.GetChunk(r.ctx, r.logicalPath, 0)
		if err != nil {
			return 0, fmt.Errorf("objectstore: read first chunk of %s: %w", r.logicalPath, err)
		}
		r.cur = data
		r.curOff = 0
	}

	for r.curOff >= len(r.cur) {
		fetch := <-r.prefetch
		if fetch.err == io.EOF {
			r.done = true
			return 0, io.EOF
		}
		if fetch.err != nil {
			return 0, fmt.Errorf("objectstore: prefetch chunk of %s: %w", r.logicalPath, fetch.err)
		}
		r.cur = fetch.data
		r.curOff = 0
		r.startPrefetch()
	}

	n := copy(p, r.cur[r.curOff:])
	r.curOff += n
	return n, nil
}
