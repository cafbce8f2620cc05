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

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewTagsLoggerWithTarget(t *testing.T) {
	var buf bytes.Buffer
	log := New("file-downloader").Output(&buf)
	require.NotNil(t, log)
	log.Info().Msg("hello")
	require.Contains(t, buf.String(), `"target":"file-downloader"`)
}

// TestTopicHookIgnoresBelowWarn exercises the early-return branch of
// topicHook.Run: anything below WARN must never touch the producer, so a
// nil producer here proves the guard fires before any broker call.
func TestTopicHookIgnoresBelowWarn(t *testing.T) {
	h := topicHook{target: "file-downloader", producer: nil}

	require.NotPanics(t, func() {
		h.Run(nil, zerolog.InfoLevel, "informational, not forwarded")
		h.Run(nil, zerolog.DebugLevel, "also not forwarded")
	})
}
