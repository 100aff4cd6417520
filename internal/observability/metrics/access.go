// Copyright 2026 The Reelgate Authors
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

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Access holds the instruments recorded on the authorization path.
// A nil *Access records nothing.
type Access struct {
	decisions   metric.Int64Counter
	resolutions metric.Int64Counter
	resolveTime metric.Float64Histogram
}

// NewAccess registers the authorization instruments on m.
func NewAccess(m *Meter) (*Access, error) {
	decisions, err := m.CreateCounter("reelgate.access.decisions", "Gate decisions by role and outcome")
	if err != nil {
		return nil, err
	}
	resolutions, err := m.CreateCounter("reelgate.role.resolutions", "Role resolutions by state and claim status")
	if err != nil {
		return nil, err
	}
	resolveTime, err := m.CreateHistogram("reelgate.role.resolve_duration", "Time spent resolving the caller role", "ms")
	if err != nil {
		return nil, err
	}
	return &Access{
		decisions:   decisions,
		resolutions: resolutions,
		resolveTime: resolveTime,
	}, nil
}

// RecordDecision counts one gate decision.
func (a *Access) RecordDecision(ctx context.Context, role, route string, allowed bool) {
	if a == nil {
		return
	}
	a.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("route", route),
		attribute.Bool("allowed", allowed),
	))
}

// RecordResolution counts one role resolution and its latency.
func (a *Access) RecordResolution(ctx context.Context, state, claim string, elapsed time.Duration) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("claim", claim),
	)
	a.resolutions.Add(ctx, 1, attrs)
	a.resolveTime.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
