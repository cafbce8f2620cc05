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

// Package metrics exposes a per-binary Prometheus registry on /metrics,
// the observability surface the distilled spec's Non-goals excludes as a
// product feature but which every stage still carries as ambient
// infrastructure, matching the teacher's prometheus/client_golang use.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the counters a stage increments as it runs.
type Registry struct {
	reg *prometheus.Registry

	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	RecoverableErrors prometheus.Counter
	FatalErrors       prometheus.Counter
}

// New constructs a Registry with all counters labeled by stage name.
func New(stage string) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		MessagesConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "chess_pipeline_messages_consumed_total",
			Help:        "Messages consumed from the broker.",
			ConstLabels: prometheus.Labels{"stage": stage},
		}),
		MessagesProduced: factory.NewCounter(prometheus.CounterOpts{
			Name:        "chess_pipeline_messages_produced_total",
			Help:        "Messages produced to the broker.",
			ConstLabels: prometheus.Labels{"stage": stage},
		}),
		RecoverableErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "chess_pipeline_recoverable_errors_total",
			Help:        "Recoverable parse/processing errors.",
			ConstLabels: prometheus.Labels{"stage": stage},
		}),
		FatalErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "chess_pipeline_fatal_errors_total",
			Help:        "Fatal errors that halted the stage.",
			ConstLabels: prometheus.Labels{"stage": stage},
		}),
	}
}

// Serve starts an HTTP server exposing /metrics on addr and blocks until
// ctx is canceled or the server fails.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
