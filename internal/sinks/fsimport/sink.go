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

// Package fsimport implements the filesystem-import stage (§4.6.3): an
// hourly poll of the remote CSV catalog, deduplicated against a
// JSON-persisted set of already-synced keys, loading each new object into
// its target table.
package fsimport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lichess-archive/chess-pipeline/internal/objectstore"
)

// kindTables maps a catalog prefix to its destination table name.
var kindTables = map[string]string{
	"games":         "chess_games",
	"moves":         "chess_game_moves",
	"comment_evals": "comment_evals",
}

// Limits caps how many un-synced files of each kind are imported per poll
// (§6.1's synced_games_files_limit / synced_game_moves_files_limit); nil
// means unbounded.
type Limits struct {
	GamesFiles     *uint32
	GameMovesFiles *uint32
}

// Stage polls the remote catalog and imports new CSV objects into target.
type Stage struct {
	Catalog   *objectstore.RemoteCatalog
	Target    Target
	StatePath string
	Limits    Limits
	Log       zerolog.Logger

	mu     sync.Mutex
	synced map[string]bool
}

// NewStage loads the persisted synced-key set from statePath, if any.
func NewStage(catalog *objectstore.RemoteCatalog, target Target, statePath string, limits Limits, log zerolog.Logger) (*Stage, error) {
	synced, err := loadState(statePath)
	if err != nil {
		return nil, err
	}
	return &Stage{Catalog: catalog, Target: target, StatePath: statePath, Limits: limits, Log: log, synced: synced}, nil
}

func loadState(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsimport: read state %s: %w", path, err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("fsimport: decode state %s: %w", path, err)
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

func (s *Stage) persistState() error {
	keys := make([]string, 0, len(s.synced))
	for k := range s.synced {
		keys = append(keys, k)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("fsimport: encode state: %w", err)
	}
	if err := os.WriteFile(s.StatePath, data, 0o644); err != nil {
		return fmt.Errorf("fsimport: write state %s: %w", s.StatePath, err)
	}
	return nil
}

// Poll runs one import pass across every known kind prefix.
func (s *Stage) Poll(ctx context.Context) error {
	for prefix, table := range kindTables {
		limit := s.limitFor(prefix)
		if err := s.pollPrefix(ctx, prefix, table, limit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) limitFor(prefix string) *uint32 {
	switch prefix {
	case "games":
		return s.Limits.GamesFiles
	case "moves", "comment_evals":
		return s.Limits.GameMovesFiles
	default:
		return nil
	}
}

func (s *Stage) pollPrefix(ctx context.Context, prefix, table string, limit *uint32) error {
	entries, err := s.Catalog.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("fsimport: list %s: %w", prefix, err)
	}

	var imported uint32
	for _, entry := range entries {
		if limit != nil && imported >= *limit {
			break
		}
		s.mu.Lock()
		already := s.synced[entry.Key]
		s.mu.Unlock()
		if already {
			continue
		}

		if err := s.importOne(ctx, table, entry.Key); err != nil {
			return err
		}
		imported++
	}
	return nil
}

func (s *Stage) importOne(ctx context.Context, table, key string) error {
	data, err := s.Catalog.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("fsimport: fetch %s: %w", key, err)
	}

	tmp, err := os.CreateTemp("", "fsimport-*.csv")
	if err != nil {
		return fmt.Errorf("fsimport: create temp file for %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsimport: spool %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsimport: close spooled file for %s: %w", key, err)
	}

	if err := s.Target.Put(ctx, table, key, tmpPath); err != nil {
		return fmt.Errorf("fsimport: put %s into %s: %w", key, table, err)
	}
	if err := s.Target.Load(ctx, table, key); err != nil {
		return fmt.Errorf("fsimport: load %s into %s: %w", key, table, err)
	}
	if err := s.Target.Delete(ctx, table, key); err != nil {
		return fmt.Errorf("fsimport: delete staged %s from %s: %w", key, table, err)
	}

	s.mu.Lock()
	s.synced[key] = true
	s.mu.Unlock()
	return s.persistState()
}
