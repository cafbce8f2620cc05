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

package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteCatalog lists and fetches CSV objects through a separate HTTPS API
// (GET /v1/{bucket}/{prefix}, bearer token) rather than the S3 protocol
// (§4.2, §6.3), as used by the filesystem-import stage.
type RemoteCatalog struct {
	baseURL string
	bucket  string
	apiKey  string
	http    *http.Client
}

func NewRemoteCatalog(baseURL, bucket, apiKey string) *RemoteCatalog {
	return &RemoteCatalog{baseURL: strings.TrimRight(baseURL, "/"), bucket: bucket, apiKey: apiKey, http: &http.Client{}}
}

// CatalogEntry is one object key known to the remote catalog.
type CatalogEntry struct {
	Key string `json:"key"`
}

// List returns every object key under prefix.
func (r *RemoteCatalog) List(ctx context.Context, prefix string) ([]CatalogEntry, error) {
	url := fmt.Sprintf("%s/v1/%s/%s", r.baseURL, r.bucket, prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("objectstore: list %s: unexpected status %d", prefix, resp.StatusCode)
	}

	var entries []CatalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("objectstore: decode list %s: %w", prefix, err)
	}
	return entries, nil
}

// Fetch downloads the bytes of one cataloged key.
func (r *RemoteCatalog) Fetch(ctx context.Context, key string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/%s/%s", r.baseURL, r.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: build fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("objectstore: fetch %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("objectstore: fetch %s: unexpected status %d", key, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read fetch body %s: %w", key, err)
	}
	return body, nil
}
