// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package transport

import (
	"context"
	"time"
)

// CheckHealth runs fn and rates the result. A failing check is unhealthy, a slow one degraded.
func CheckHealth(ctx context.Context, degradedLatency time.Duration, fn func(context.Context) error) Health {
	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return Health{Status: Unhealthy, Detail: err.Error(), Latency: latency}
	case degradedLatency > 0 && latency > degradedLatency:
		return Health{Status: Degraded, Detail: "latency above " + degradedLatency.String(), Latency: latency}
	default:
		return Health{Status: Healthy, Latency: latency}
	}
}
