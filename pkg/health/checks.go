package health

import (
	"context"
	"fmt"
)

// SnapshotCheck reports down until a dataset generation is being served.
func SnapshotCheck(current func() (generation int64, ok bool)) Check {
	return func(ctx context.Context) ComponentHealth {
		generation, ok := current()
		if !ok {
			return ComponentHealth{Status: StatusDown, Message: "no dataset loaded"}
		}
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("generation %d", generation)}
	}
}

// PingCheck probes an optional dependency. A failing ping degrades the
// service without taking it down.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDegraded, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}
