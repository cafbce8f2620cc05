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

package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTopicNamesAreStable pins the §4.1 "stable names" down against
// accidental renames; the wire contract in §6.2 depends on these exact
// strings.
func TestTopicNamesAreStable(t *testing.T) {
	require.Equal(t, "archive-file-index", TopicArchiveFileIndex)
	require.Equal(t, "archive-file-synced", TopicArchiveFileSynced)
	require.Equal(t, "raw-games", TopicRawGames)
	require.Equal(t, "parsed-games", TopicParsedGames)
	require.Equal(t, "parser-errors", TopicParserErrors)
	require.Equal(t, "operational-logs", TopicOperationalLogs)
}
