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
	"fmt"
	"os"
	"path/filepath"
)

// Target abstracts "put into the filesystem and then load data inpath"
// (§4.6.3). The wire protocol to the actual distributed filesystem (HDFS,
// or whatever backs a given deployment) is explicitly out of scope (§1
// Non-goals); this interface is the narrow seam the stage depends on, with
// a local-disk reference implementation below for tests and small
// deployments.
type Target interface {
	// Put copies the file at localPath into the target under table/key.
	Put(ctx context.Context, table, key, localPath string) error
	// Load triggers the target's "load data inpath"-equivalent ingest of
	// the object just Put under table/key.
	Load(ctx context.Context, table, key string) error
	// Delete removes the staged object under table/key once Load has
	// consumed it.
	Delete(ctx context.Context, table, key string) error
}

// LocalDiskTarget implements Target against a plain directory tree, one
// subdirectory per table; Load is a no-op since a local directory has no
// separate load step.
type LocalDiskTarget struct {
	Root string
}

func (t *LocalDiskTarget) Put(ctx context.Context, table, key, localPath string) error {
	dir := filepath.Join(t.Root, table)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsimport: mkdir %s: %w", dir, err)
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("fsimport: read staged file %s: %w", localPath, err)
	}
	dest := filepath.Join(dir, key)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("fsimport: write %s: %w", dest, err)
	}
	return nil
}

func (t *LocalDiskTarget) Load(ctx context.Context, table, key string) error {
	return nil
}

func (t *LocalDiskTarget) Delete(ctx context.Context, table, key string) error {
	path := filepath.Join(t.Root, table, key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsimport: delete staged object %s: %w", path, err)
	}
	return nil
}
