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

package fsimport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalDiskTargetPutLoadDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	target := &LocalDiskTarget{Root: root}

	staged := filepath.Join(t.TempDir(), "games.csv")
	require.NoError(t, os.WriteFile(staged, []byte("id,opening\n1,B90\n"), 0o644))

	require.NoError(t, target.Put(ctx, "games", "abc123", staged))

	landed := filepath.Join(root, "games", "abc123")
	data, err := os.ReadFile(landed)
	require.NoError(t, err)
	require.Equal(t, "id,opening\n1,B90\n", string(data))

	require.NoError(t, target.Load(ctx, "games", "abc123"))

	require.NoError(t, target.Delete(ctx, "games", "abc123"))
	_, err = os.Stat(landed)
	require.True(t, os.IsNotExist(err))

	// Deleting an already-absent object is a no-op, not an error, so
	// retries after a partial crash stay safe.
	require.NoError(t, target.Delete(ctx, "games", "abc123"))
}

func TestLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	synced, err := loadState(path)
	require.NoError(t, err)
	require.Empty(t, synced)

	stage := &Stage{StatePath: path, synced: map[string]bool{"a": true, "b": true}}
	require.NoError(t, stage.persistState())

	reloaded, err := loadState(path)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a": true, "b": true}, reloaded)
}
