package app

import (
	"context"
	"time"
)

// countdown ticks once per unit and posts the remaining value. Only the game loop starts
// and stops it; a stopped countdown never posts again.
type countdown struct {
	gen    uint64
	cancel context.CancelFunc
}

type tickEvent struct {
	gen       uint64
	remaining int
}

func startCountdown(parent context.Context, gen uint64, units int, tick time.Duration, post func(context.Context, tickEvent) bool) *countdown {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		remaining := units
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			remaining--
			if !post(ctx, tickEvent{gen: gen, remaining: remaining}) {
				return
			}
		}
	}()
	return &countdown{gen: gen, cancel: cancel}
}

func (c *countdown) stop() {
	if c != nil {
		c.cancel()
	}
}
