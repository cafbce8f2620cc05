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

package lichess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// redirectTransport rewrites every outbound request to point at a local
// httptest server, regardless of the URL the caller built the request
// with. This lets ListFiles's hardcoded listURL be tested against a fake
// upstream without any real network access.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return New(&http.Client{Transport: redirectTransport{target: u}})
}

func TestListFilesParsesNonEmptyLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("lichess_db_standard_rated_2023-01.pgn.zst\n\n" +
			"  \nlichess_db_standard_rated_2023-02.pgn.zst\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"lichess_db_standard_rated_2023-01.pgn.zst",
		"lichess_db_standard_rated_2023-02.pgn.zst",
	}, files)
}

func TestListFilesRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListFiles(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 503")
}
