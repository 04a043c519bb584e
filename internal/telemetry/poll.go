package telemetry

import (
	"time"

	"github.com/nerrad567/sws-bridge/internal/encoder"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
)

// defaultPollInterval is the encoder sampling period when none is configured.
const defaultPollInterval = time.Millisecond

// AxisPoll pairs an encoder with its sampling period.
type AxisPoll struct {
	Encoder  *encoder.Encoder
	Interval time.Duration
}

// PollAxes registers one sampling timer per axis. A failing pin read is
// logged once when it starts failing and once when it recovers.
func PollAxes(s *scheduler.Scheduler, axes []AxisPoll, logger Logger) {
	for _, a := range axes {
		enc := a.Encoder
		interval := a.Interval
		if interval <= 0 {
			interval = defaultPollInterval
		}

		failing := false
		s.Every("poll:"+enc.Name(), interval, func() {
			err := enc.Poll()
			switch {
			case err != nil && !failing:
				failing = true
				if logger != nil {
					logger.Warn("axis encoder read failing", "axis", enc.Name(), "error", err)
				}
			case err == nil && failing:
				failing = false
				if logger != nil {
					logger.Info("axis encoder read recovered", "axis", enc.Name())
				}
			}
		})
	}
}
