package reconcile

import (
	"testing"
	"time"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom/htmldom"
)

func subjectsOf(t *testing.T, body string, n int) []annotate.Subject {
	t.Helper()
	doc := htmldom.MustParseString("<html><body>"+body+"</body></html>", "https://x.test/")
	rule := &annotate.Rule{Name: "r", Resolver: &annotate.SelectorResolver{Sel: "p"}}
	var out []annotate.Subject
	for _, el := range doc.Root().QueryAll("p") {
		s, ok := rule.Resolve(el)
		if !ok {
			t.Fatalf("resolve %s", el.Text())
		}
		out = append(out, s)
	}
	if len(out) != n {
		t.Fatalf("got %d subjects, want %d", len(out), n)
	}
	return out
}

func TestBatcher_SingleFlight(t *testing.T) {
	ss := subjectsOf(t, "<p>a</p><p>b</p>", 2)
	b := newBatcher(time.Hour, 100)
	defer b.stop()

	if b.armed() || b.timerC() != nil {
		t.Fatal("fresh batcher armed")
	}
	b.add(ss[0])
	first := b.timer
	if first == nil {
		t.Fatal("first add did not arm")
	}
	b.add(ss[1])
	b.add(ss[0])
	if b.timer != first {
		t.Fatal("later add re-armed the timer")
	}
	if b.len() != 2 {
		t.Fatalf("len: got %d, want 2", b.len())
	}
}

func TestBatcher_DedupKeepsOrder(t *testing.T) {
	ss := subjectsOf(t, "<p>a</p><p>b</p><p>c</p>", 3)
	b := newBatcher(time.Hour, 100)
	defer b.stop()

	for _, i := range []int{2, 0, 2, 1, 0, 2} {
		b.add(ss[i])
	}
	got := b.take()
	if len(got) != 3 {
		t.Fatalf("take: got %d, want 3", len(got))
	}
	for i, want := range []string{"c", "a", "b"} {
		if got[i].El.Text() != want {
			t.Errorf("batch[%d]: got %q, want %q", i, got[i].El.Text(), want)
		}
	}
}

func TestBatcher_TakeStartsNewCycle(t *testing.T) {
	ss := subjectsOf(t, "<p>a</p>", 1)
	b := newBatcher(time.Hour, 100)
	defer b.stop()

	b.add(ss[0])
	b.take()
	if b.armed() || b.len() != 0 {
		t.Fatal("take did not reset")
	}
	if got := b.take(); len(got) != 0 {
		t.Fatalf("empty take: got %d", len(got))
	}
	b.add(ss[0])
	if !b.armed() || b.len() != 1 {
		t.Fatal("add after take did not start a cycle")
	}
}

func TestBatcher_MaxBuffer(t *testing.T) {
	ss := subjectsOf(t, "<p>a</p><p>b</p><p>c</p>", 3)
	b := newBatcher(time.Hour, 3)
	defer b.stop()

	if b.add(ss[0]) || b.add(ss[1]) {
		t.Fatal("flush requested below the cap")
	}
	if b.add(ss[1]) {
		t.Fatal("duplicate counted towards the cap")
	}
	if !b.add(ss[2]) {
		t.Fatal("cap reached without flush request")
	}
}

func TestBatcher_TimerFires(t *testing.T) {
	ss := subjectsOf(t, "<p>a</p>", 1)
	b := newBatcher(5*time.Millisecond, 100)
	defer b.stop()

	b.add(ss[0])
	select {
	case <-b.timerC():
	case <-time.After(2 * time.Second):
		t.Fatal("flush timer never fired")
	}
	if got := b.take(); len(got) != 1 {
		t.Fatalf("take: got %d, want 1", len(got))
	}
}
