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

package progress

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMeterAccumulatesCount(t *testing.T) {
	m := New(zerolog.Nop(), "test-stage")
	m.Add(3)
	m.Add(4)
	require.Equal(t, int64(7), m.Count())
}

// TestMeterConcurrentAdd exercises the §5 "protected by a mutex when
// shared across N consumer tasks" requirement: concurrent Add calls must
// not race or lose updates.
func TestMeterConcurrentAdd(t *testing.T) {
	m := New(zerolog.Nop(), "test-stage")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Add(1)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(50), m.Count())
}
