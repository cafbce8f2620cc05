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

// Package progress implements the one process-internal shared-mutable
// state described in §5: a progress meter protected by a mutex when shared
// across N consumer tasks, reporting at most once every 10s. When stderr is
// a terminal it also drives an mpb bar so an operator watching a single
// stage locally sees live throughput, not just periodic log lines.
package progress

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Meter accumulates a monotonically increasing count and logs it at most
// once every 10s of wall time, regardless of how often Add is called.
type Meter struct {
	mu       sync.Mutex
	label    string
	log      zerolog.Logger
	count    int64
	lastLog  time.Time
	interval time.Duration

	progress *mpb.Progress
	bar      *mpb.Bar
}

// New constructs a Meter that reports through log under label, no more
// often than every 10s, and, when stderr is a terminal, additionally renders a
// live mpb counter bar for label on stderr; the bar's total grows with the
// count since the eventual total of a streaming stage is unknown ahead of time.
func New(log zerolog.Logger, label string) *Meter {
	m := &Meter{label: label, log: log, interval: 10 * time.Second}

	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		m.progress = mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
		m.bar = m.progress.AddBar(1,
			mpb.BarFillerClearOnComplete(),
			mpb.PrependDecorators(decor.Name(label)),
			mpb.AppendDecorators(decor.CurrentNoUnit("%d processed")),
		)
	}

	return m
}

// Add increments the counter by delta, advances the terminal bar (if any),
// and logs if the interval has elapsed since the last report.
func (m *Meter) Add(delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count += delta

	if m.bar != nil {
		m.bar.SetTotal(m.count+1, false)
		m.bar.IncrBy(int(delta))
	}

	now := time.Now()
	if m.lastLog.IsZero() || now.Sub(m.lastLog) >= m.interval {
		m.log.Info().Str("stage", m.label).Int64("count", m.count).Msg("progress")
		m.lastLog = now
	}
}

// Count returns the current total.
func (m *Meter) Count() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
