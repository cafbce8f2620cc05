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

// Package broker wraps the message-broker client used by every pipeline
// stage: a non-transactional producer for at-least-once topics, a
// transactional producer for the splitter's exactly-once batches, and
// consumers bound to a stable group id (§4.1).
package broker

// Recognized topic names (§4.1), stable across releases.
const (
	TopicArchiveFileIndex  = "archive-file-index"
	TopicArchiveFileSynced = "archive-file-synced"
	TopicRawGames          = "raw-games"
	TopicParsedGames       = "parsed-games"
	TopicParserErrors      = "parser-errors"
	TopicOperationalLogs   = "operational-logs"
)
