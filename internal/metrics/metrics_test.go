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

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewCountersStartAtZeroAndIncrement(t *testing.T) {
	r := New("file-downloader")

	require.Equal(t, float64(0), testutil.ToFloat64(r.MessagesConsumed))

	r.MessagesConsumed.Inc()
	r.MessagesProduced.Add(2)
	r.RecoverableErrors.Inc()
	r.FatalErrors.Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(r.MessagesConsumed))
	require.Equal(t, float64(2), testutil.ToFloat64(r.MessagesProduced))
	require.Equal(t, float64(1), testutil.ToFloat64(r.RecoverableErrors))
	require.Equal(t, float64(1), testutil.ToFloat64(r.FatalErrors))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	r := New("game-parser")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Serve(ctx, "127.0.0.1:0") }()

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestServeReturnsErrorOnBadAddress(t *testing.T) {
	r := New("chunk-splitter")
	err := r.Serve(context.Background(), "not-a-valid-address")
	require.Error(t, err)
}
