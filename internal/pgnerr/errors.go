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

// Package pgnerr fixes the source tree's mix of panics and collected errors
// (§9) into two explicit error kinds: Recoverable errors are accumulated
// during parsing and reported per-game without halting the stage; Fatal
// errors halt the process, matching the "fatal" rows of the §4.5 header,
// SAN, NAG, and comment tables.
package pgnerr

import (
	"errors"
	"fmt"
)

// Recoverable marks a per-game parse error that should be published to
// parser-errors without aborting the process.
type Recoverable struct {
	msg string
}

func NewRecoverable(format string, args ...any) *Recoverable {
	return &Recoverable{msg: fmt.Sprintf(format, args...)}
}

func (e *Recoverable) Error() string { return e.msg }

// Fatal marks a violation that halts the owning stage: malformed Round,
// unknown Result, malformed TimeControl, malformed UTCTime sequence,
// unknown comment key, unknown NAG code, or any invariant violation from §7.
type Fatal struct {
	msg string
}

func NewFatal(format string, args ...any) *Fatal {
	return &Fatal{msg: fmt.Sprintf(format, args...)}
}

func (e *Fatal) Error() string { return e.msg }

// IsFatal reports whether err is (or wraps) a Fatal error.
func IsFatal(err error) bool {
	var fatal *Fatal
	return errors.As(err, &fatal)
}
