package links

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeLookup is a concurrency-safe TitleLookup backed by fixed titles.
type fakeLookup struct {
	mu     sync.Mutex
	titles map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeLookup(titles map[string]string) *fakeLookup {
	return &fakeLookup{
		titles: titles,
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeLookup) lookup(_ context.Context, gid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[gid]++
	if err, ok := f.errs[gid]; ok {
		return "", err
	}
	title, ok := f.titles[gid]
	if !ok {
		return "", fmt.Errorf("no task %s", gid)
	}
	return title, nil
}

func (f *fakeLookup) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestRewriteBody_EmptyBody(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Title"})

	res := RewriteBody(context.Background(), "", fake.lookup)

	if res.Body != "" || res.Changed || res.Count != 0 {
		t.Errorf("got %+v, want empty result", res)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("lookup called %d times, want 0", fake.totalCalls())
	}
}

func TestRewriteBody_NoTargetURLs(t *testing.T) {
	fake := newFakeLookup(nil)
	body := "Just text, plus https://github.com/org/repo/pull/5 and a [link](https://example.com)."

	res := RewriteBody(context.Background(), body, fake.lookup)

	if res.Body != body {
		t.Errorf("body changed:\n%s", res.Body)
	}
	if res.Changed || res.Count != 0 {
		t.Errorf("Changed = %v, Count = %d, want false, 0", res.Changed, res.Count)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("lookup called %d times, want 0", fake.totalCalls())
	}
}

func TestRewriteBody_PlainURL(t *testing.T) {
	fake := newFakeLookup(map[string]string{"789012": "Fix bug"})

	res := RewriteBody(context.Background(), "See https://app.asana.com/0/123456/789012", fake.lookup)

	want := "See [Fix bug](https://app.asana.com/0/123456/789012)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if !res.Changed || res.Count != 1 {
		t.Errorf("Changed = %v, Count = %d, want true, 1", res.Changed, res.Count)
	}
}

func TestRewriteBody_AlreadyCorrectLink(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Old"})
	body := "[Old](https://app.asana.com/0/1/2)"

	res := RewriteBody(context.Background(), body, fake.lookup)

	if res.Body != body {
		t.Errorf("body changed:\n%s", res.Body)
	}
	// Counts reflect reconciled occurrences, not bytes changed.
	if !res.Changed || res.Count != 1 {
		t.Errorf("Changed = %v, Count = %d, want true, 1", res.Changed, res.Count)
	}
}

func TestRewriteBody_StaleLabelReplaced(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "New title"})

	res := RewriteBody(context.Background(), "[Old title](https://app.asana.com/0/1/2)", fake.lookup)

	want := "[New title](https://app.asana.com/0/1/2)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Count)
	}
}

func TestRewriteBody_BracketedTitleSanitized(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Fix [crash] on startup"})

	res := RewriteBody(context.Background(), "See https://app.asana.com/0/1/2", fake.lookup)

	want := "See [Fix (crash) on startup](https://app.asana.com/0/1/2)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	// The line must still parse as exactly one markdown link.
	spans := linkSpans(res.Body)
	if len(spans) != 1 {
		t.Fatalf("got %d link spans, want 1: %v", len(spans), spans)
	}
}

func TestRewriteBody_LookupFailureIsolated(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Works"})
	fake.errs["4"] = fmt.Errorf("asana is down")
	body := "First https://app.asana.com/0/1/2\nSecond https://app.asana.com/0/3/4"

	res := RewriteBody(context.Background(), body, fake.lookup)

	want := "First [Works](https://app.asana.com/0/1/2)\nSecond https://app.asana.com/0/3/4"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1 (failed lookup must not count)", res.Count)
	}
}

func TestRewriteBody_AllLookupsFail(t *testing.T) {
	fake := newFakeLookup(nil) // every gid errors
	body := "https://app.asana.com/0/1/2 and more"

	res := RewriteBody(context.Background(), body, fake.lookup)

	if res.Body != body || res.Changed || res.Count != 0 {
		t.Errorf("got %+v, want original body unchanged", res)
	}
}

func TestRewriteBody_RepeatedURLSingleLookup(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Once"})
	body := "a https://app.asana.com/0/1/2\nb https://app.asana.com/0/1/2 c https://app.asana.com/0/1/2"

	res := RewriteBody(context.Background(), body, fake.lookup)

	want := "a [Once](https://app.asana.com/0/1/2)\nb [Once](https://app.asana.com/0/1/2) c [Once](https://app.asana.com/0/1/2)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
	if fake.calls["2"] != 1 {
		t.Errorf("lookup for gid 2 called %d times, want 1", fake.calls["2"])
	}
}

func TestRewriteBody_MixedLineExistingAndPlain(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Task two", "3": "Task three"})
	body := "Fix https://app.asana.com/0/1/2 and [Task three](https://app.asana.com/0/1/3)"

	res := RewriteBody(context.Background(), body, fake.lookup)

	want := "Fix [Task two](https://app.asana.com/0/1/2) and [Task three](https://app.asana.com/0/1/3)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 2 {
		t.Errorf("Count = %d, want 2", res.Count)
	}
}

func TestRewriteBody_URLWithNoExtractableGID(t *testing.T) {
	fake := newFakeLookup(map[string]string{})
	body := "See https://app.asana.com/profile/settings for details"

	res := RewriteBody(context.Background(), body, fake.lookup)

	if res.Body != body || res.Changed || res.Count != 0 {
		t.Errorf("got %+v, want untouched body", res)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("lookup called %d times, want 0", fake.totalCalls())
	}
}

func TestRewriteBody_PrefixURLNotRewrappedInsideLonger(t *testing.T) {
	// Both URLs resolve to gid 2; the shorter is a strict prefix of the longer.
	fake := newFakeLookup(map[string]string{"2": "Same task"})
	body := "https://app.asana.com/0/1/2\nhttps://app.asana.com/0/1/2/f"

	res := RewriteBody(context.Background(), body, fake.lookup)

	want := "[Same task](https://app.asana.com/0/1/2)\n[Same task](https://app.asana.com/0/1/2/f)"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if res.Count != 2 {
		t.Errorf("Count = %d, want 2", res.Count)
	}
}

func TestRewriteBody_Idempotent(t *testing.T) {
	fake := newFakeLookup(map[string]string{
		"2": "Plain title",
		"4": "Nested [brackets] title",
	})
	body := "- https://app.asana.com/0/1/2\n- https://app.asana.com/0/3/4\n\nUnrelated https://example.com text."

	first := RewriteBody(context.Background(), body, fake.lookup)
	second := RewriteBody(context.Background(), first.Body, fake.lookup)

	if diff := cmp.Diff(first.Body, second.Body); diff != "" {
		t.Errorf("second run changed the body (-first +second):\n%s", diff)
	}
	if second.Count != first.Count {
		t.Errorf("second Count = %d, want %d (re-runs still report reconciled occurrences)", second.Count, first.Count)
	}
	if !second.Changed {
		t.Error("second run Changed = false, want true")
	}
}

func TestRewriteBody_CRLFBodyPreserved(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Title"})
	body := "Intro\r\nSee https://app.asana.com/0/1/2\r\nOutro"

	res := RewriteBody(context.Background(), body, fake.lookup)

	want := "Intro\r\nSee [Title](https://app.asana.com/0/1/2)\r\nOutro"
	if diff := cmp.Diff(want, res.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriter_Rewrite(t *testing.T) {
	fake := newFakeLookup(map[string]string{"2": "Bound"})
	r := NewRewriter(fake.lookup)

	res := r.Rewrite(context.Background(), "https://app.asana.com/0/1/2")

	if res.Body != "[Bound](https://app.asana.com/0/1/2)" {
		t.Errorf("Body = %q", res.Body)
	}
}
