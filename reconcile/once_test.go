package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/overlay/annotate"
	"github.com/hazyhaar/overlay/dom/htmldom"
)

func TestOnce_AnnotatesRoot(t *testing.T) {
	doc := htmldom.MustParseString(`<html><head></head><body><div id="app"><span class="st" id="a">Connected</span></div></body></html>`, "https://console.example.test/")
	st, err := Once(context.Background(), doc, annotate.NewMatcher(statusRule()), Config{RootSelector: "#app", CSS: ".st{}", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Once: %v", err)
	}
	if st.Annotated != 1 || st.Flushes != 1 {
		t.Errorf("stats = %+v", st)
	}
	if got := doc.Query("#a").Style("color"); got != "#1FAF2C" {
		t.Errorf("color = %q", got)
	}
	if !strings.Contains(doc.String(), `id="`+StyleID+`"`) {
		t.Error("stylesheet missing from rendered document")
	}
}

func TestOnce_NotRelevant(t *testing.T) {
	doc := htmldom.MustParseString(`<html><body><div id="app"></div></body></html>`, "https://elsewhere.test/")
	cfg := Config{
		RootSelector: "#app",
		Relevant:     func(string) bool { return false },
		Logger:       quietLogger(),
	}
	if _, err := Once(context.Background(), doc, annotate.NewMatcher(statusRule()), cfg); !errors.Is(err, ErrNotRelevant) {
		t.Fatalf("err = %v, want ErrNotRelevant", err)
	}
}

func TestOnce_MissingRoot(t *testing.T) {
	doc := htmldom.MustParseString(`<html><body><p>loading</p></body></html>`, "https://console.example.test/")
	if _, err := Once(context.Background(), doc, annotate.NewMatcher(statusRule()), Config{RootSelector: "#app", Logger: quietLogger()}); !errors.Is(err, ErrNotRelevant) {
		t.Fatalf("err = %v, want ErrNotRelevant", err)
	}
	if doc.Query("style") != nil {
		t.Error("stylesheet injected without a root")
	}
}
