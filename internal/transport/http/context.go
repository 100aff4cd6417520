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

package http

import (
	"context"

	"github.com/reelgate/reelgate/internal/gate"
)

type contextKey string

const gateKey contextKey = "gate"

// WithGate stores the caller's gate in ctx.
func WithGate(ctx context.Context, g *gate.Gate) context.Context {
	return context.WithValue(ctx, gateKey, g)
}

// GetGate retrieves the caller's gate from context, or nil when the request
// did not pass through ResolveRole.
func GetGate(ctx context.Context) *gate.Gate {
	if val, ok := ctx.Value(gateKey).(*gate.Gate); ok {
		return val
	}
	return nil
}
