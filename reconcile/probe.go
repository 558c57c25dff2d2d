package reconcile

import "time"

// prober schedules root-discovery attempts with exponential backoff.
// There is at most one pending attempt: start replaces any earlier one.
type prober struct {
	min, max time.Duration

	delay   time.Duration
	timer   *time.Timer
	timerCh <-chan time.Time
	attempt int
}

func newProber(min, max time.Duration) *prober {
	return &prober{min: min, max: max}
}

// start resets the backoff. The caller makes the first attempt at once.
func (p *prober) start() {
	p.stop()
	p.delay = p.min
	p.attempt = 0
}

// next arms the timer for the following attempt and doubles the delay.
func (p *prober) next() time.Duration {
	p.stop()
	d := p.delay
	p.timer = time.NewTimer(d)
	p.timerCh = p.timer.C
	p.attempt++
	p.delay = min(p.delay*2, p.max)
	return d
}

func (p *prober) pending() bool { return p.timer != nil }

func (p *prober) timerC() <-chan time.Time { return p.timerCh }

// fired clears the timer after its channel delivered.
func (p *prober) fired() {
	p.timer = nil
	p.timerCh = nil
}

func (p *prober) stop() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
		p.timerCh = nil
	}
}
