package reconcile

import (
	"testing"
	"time"
)

func TestProber_Backoff(t *testing.T) {
	p := newProber(100*time.Millisecond, 500*time.Millisecond)
	defer p.stop()

	p.start()
	want := []time.Duration{100, 200, 400, 500, 500}
	for i, w := range want {
		if got := p.next(); got != w*time.Millisecond {
			t.Errorf("attempt %d: got %v, want %v", i, got, w*time.Millisecond)
		}
	}
	if p.attempt != len(want) {
		t.Errorf("attempt: got %d, want %d", p.attempt, len(want))
	}
}

func TestProber_StartReplacesPending(t *testing.T) {
	p := newProber(10*time.Millisecond, time.Second)
	defer p.stop()

	p.start()
	p.next()
	p.next()
	if !p.pending() {
		t.Fatal("no pending attempt")
	}
	p.start()
	if p.pending() || p.timerC() != nil {
		t.Fatal("start kept the old attempt")
	}
	if got := p.next(); got != 10*time.Millisecond {
		t.Fatalf("delay after restart: got %v, want 10ms", got)
	}
}

func TestProber_Fired(t *testing.T) {
	p := newProber(time.Millisecond, time.Millisecond)
	defer p.stop()

	p.start()
	p.next()
	select {
	case <-p.timerC():
		p.fired()
	case <-time.After(2 * time.Second):
		t.Fatal("probe timer never fired")
	}
	if p.pending() {
		t.Fatal("still pending after fired")
	}
}
