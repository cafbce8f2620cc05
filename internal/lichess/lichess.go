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

// Package lichess fetches the upstream archive listing that seeds
// archive-file-index; supplements the distilled spec (the source tree's
// update_checker step) since the listing source is out of scope for
// spec.md but a complete pipeline needs a producer for that topic.
package lichess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const listURL = "https://database.lichess.org/standard/list.txt"

// Client fetches the line-delimited list of archive URLs.
type Client struct {
	HTTP *http.Client
}

func New(httpClient *http.Client) *Client {
	return &Client{HTTP: httpClient}
}

// ListFiles returns every non-empty line of the upstream list.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("lichess: build list request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lichess: fetch list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lichess: fetch list: unexpected status %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lichess: read list body: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
