// monitor/loop.go
package monitor

import (
	"context"
	"time"

	"captain_grid_go/logs"
)

// Cycler is the control cycle the monitor drives. *engine.Controller satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context, now time.Time)
	Heartbeat() string
}

// Start runs one cycle immediately and then one per interval until stopChan closes
// or ctx is cancelled. Cycles never overlap: a slow cycle delays the next tick.
func Start(ctx context.Context, cycler Cycler, interval, heartbeatInterval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastHeartbeat := time.Now()
	cycler.RunCycle(ctx, lastHeartbeat)

	for {
		select {
		case <-stopChan:
			logs.Info("Monitor received stop signal, exiting.")
			return
		case <-ctx.Done():
			logs.Info("Monitor context cancelled, exiting.")
			return
		case now := <-ticker.C:
			cycler.RunCycle(ctx, now)

			if heartbeatInterval > 0 && now.Sub(lastHeartbeat) >= heartbeatInterval {
				logs.Infof("[Heartbeat] %s", cycler.Heartbeat())
				lastHeartbeat = now
			}
		}
	}
}
