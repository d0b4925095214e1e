package w1

import (
	"sync"
	"time"
)

// Scheduler is the single timing capability the kit needs: run a callback
// once, after a delay. Production code uses the process timer wheel,
// tests substitute a fake they can step manually.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Poller invokes an action immediately on Start and then again each time
// the period elapses, until stopped. The timer is rearmed right after the
// action call returns, so a slow synchronous action delays subsequent
// cycles; an asynchronous action does not, and overlapping cycles are
// the action's own concern.
type Poller struct {
	period    time.Duration
	action    func()
	scheduler Scheduler

	mu      sync.Mutex
	stopped bool
}

func newPoller(period time.Duration, action func(), scheduler Scheduler) *Poller {
	return &Poller{
		period:    period,
		action:    action,
		scheduler: scheduler,
	}
}

func (p *Poller) Start() {
	p.cycle()
}

// Stop prevents any further cycles. A cycle already running is not
// interrupted.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *Poller) cycle() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.action()
	p.scheduler.AfterFunc(p.period, p.cycle)
}
