package session

import (
	"context"
	"time"
)

// Ticker is the part of time.Ticker used by Poller
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with period d
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

// Poller calls a function at a fixed period until it reports done or is stopped.
// The first call happens immediately
type Poller struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPoller starts polling for id, f returns true when polling is finished
func StartPoller(ctx context.Context, id string, interval time.Duration, newTicker TickerFunc,
	f func(ctx context.Context) bool) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	res := &Poller{id: id, cancel: cancel, done: make(chan struct{})}
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	t := newTicker(interval)
	go func() {
		defer close(res.done)
		defer cancel()
		defer t.Stop()
		if f(ctx) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C():
				if ctx.Err() != nil || f(ctx) {
					return
				}
			}
		}
	}()
	return res
}

// ID returns polled transcript id
func (p *Poller) ID() string {
	return p.id
}

// Stop cancels polling, does not wait for the running call
func (p *Poller) Stop() {
	p.cancel()
}

// Done is closed when the polling goroutine exits
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
