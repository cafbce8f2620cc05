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

// Package logging wires zerolog for every stage and mirrors operational
// records (level >= WARN) out to the operational-logs topic with the
// structured fields §7 requires: timestamp, level, target, message.
package logging

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/broker"
)

// New returns a console-friendly zerolog.Logger tagged with target
// (the stage name, e.g. "file-downloader").
func New(target string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).With().Timestamp().Str("target", target).Logger()
}

// brokerRecord is the JSON body published to operational-logs (§7).
type brokerRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Target    string `json:"target"`
	Message   string `json:"message"`
}

// topicHook forwards WARN-and-above events to the broker as they're logged.
type topicHook struct {
	target   string
	producer *broker.Producer
}

func (h topicHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.WarnLevel {
		return
	}
	rec := brokerRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Target:    h.target,
		Message:   msg,
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return
	}
	// Best-effort: a failure to publish an operational log must not
	// recursively fail the stage that produced it.
	go func() {
		_ = h.producer.Send(context.Background(), broker.TopicOperationalLogs, []byte(h.target), body)
	}()
}

// WithBrokerSink attaches a hook that republishes WARN+ events to
// operational-logs, matching the original's LogsToKafkaTopicLayer.
func WithBrokerSink(log zerolog.Logger, target string, producer *broker.Producer) zerolog.Logger {
	return log.Hook(topicHook{target: target, producer: producer})
}
