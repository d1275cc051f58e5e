package client

import (
	"context"
	"time"
)

// ResendCooldown is how long a client waits before asking for another code.
const ResendCooldown = 60 * time.Second

// Countdown calls onTick with the remaining time once per tick until total
// has elapsed, then once more with zero. It returns ctx.Err() if ctx is
// cancelled first, after which onTick is never called again.
func Countdown(ctx context.Context, total, tick time.Duration, onTick func(left time.Duration)) error {
	if tick <= 0 {
		tick = time.Second
	}
	deadline := time.Now().Add(total)
	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		left := time.Until(deadline)
		if left <= 0 {
			if onTick != nil {
				onTick(0)
			}
			return nil
		}
		if onTick != nil {
			onTick(left.Round(tick))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
