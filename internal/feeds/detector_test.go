package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rssFeed(items ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>test</title>`)
	for _, it := range items {
		fmt.Fprintf(&b, `<item><title>%s</title><link>%s</link><description>&lt;p&gt;About &lt;b&gt;%s&lt;/b&gt;&lt;/p&gt;</description></item>`, it[0], it[1], it[0])
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

type fakeGate struct {
	mu        sync.Mutex
	deny      bool
	successes int
	failures  int
}

func (g *fakeGate) CanAccess(context.Context, string) bool { return !g.deny }
func (g *fakeGate) RecordSuccess(context.Context, string) {
	g.mu.Lock()
	g.successes++
	g.mu.Unlock()
}
func (g *fakeGate) RecordFailure(context.Context, string) {
	g.mu.Lock()
	g.failures++
	g.mu.Unlock()
}

func TestDiffIsIdempotent(t *testing.T) {
	body := rssFeed(
		[2]string{"Trial results", "https://news.example/a"},
		[2]string{"New therapy", "https://news.example/b"},
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	d := NewDetector(nil, discardLogger())
	ctx := context.Background()

	fresh, latest := d.Diff(ctx, srv.URL, nil)
	if len(fresh) != 2 || len(latest) != 2 {
		t.Fatalf("first Diff() = %d new, %d latest, want 2, 2", len(fresh), len(latest))
	}
	if fresh[0].Title != "Trial results" || fresh[0].URL != "https://news.example/a" {
		t.Errorf("first entry = %+v", fresh[0])
	}
	if fresh[0].Summary != "About **Trial results**" {
		t.Errorf("summary = %q, want markdown text", fresh[0].Summary)
	}

	again, latest2 := d.Diff(ctx, srv.URL, latest)
	if len(again) != 0 {
		t.Errorf("second Diff() returned %d new entries, want 0", len(again))
	}
	if diff := cmp.Diff(latest, latest2); diff != "" {
		t.Errorf("latest batch changed (-first +second):\n%s", diff)
	}
}

func TestDiffReportsOnlyNewEntries(t *testing.T) {
	body := rssFeed([2]string{"One", "https://news.example/1"})
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		io.WriteString(w, body)
	}))
	defer srv.Close()

	d := NewDetector(nil, discardLogger())
	snaps := NewSnapshots()
	ctx := context.Background()

	if n := snaps.Prime(ctx, d, []string{srv.URL}); n != 1 {
		t.Fatalf("Prime() = %d, want 1", n)
	}

	mu.Lock()
	body = rssFeed(
		[2]string{"Two", "https://news.example/2"},
		[2]string{"One", "https://news.example/1"},
	)
	mu.Unlock()

	fresh := snaps.Check(ctx, d, srv.URL)
	if len(fresh) != 1 || fresh[0].Title != "Two" {
		t.Fatalf("Check() = %+v, want only the new entry", fresh)
	}
	if got := len(snaps.Get(srv.URL)); got != 2 {
		t.Errorf("snapshot size = %d, want 2", got)
	}
}

func TestDiffDoesNotMutatePrevious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, rssFeed([2]string{"A", "https://news.example/a"}))
	}))
	defer srv.Close()

	previous := []models.FeedEntry{{Title: "A", URL: "https://news.example/other"}}
	want := append([]models.FeedEntry(nil), previous...)

	fresh, _ := NewDetector(nil, discardLogger()).Diff(context.Background(), srv.URL, previous)
	if len(fresh) != 1 {
		t.Errorf("same title with a different URL should be new, got %d", len(fresh))
	}
	if diff := cmp.Diff(want, previous); diff != "" {
		t.Errorf("previous mutated (-want +got):\n%s", diff)
	}
}

func TestDiffTopK(t *testing.T) {
	var items [][2]string
	for i := 0; i < 8; i++ {
		items = append(items, [2]string{fmt.Sprintf("Item %d", i), fmt.Sprintf("https://news.example/%d", i)})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, rssFeed(items...))
	}))
	defer srv.Close()

	fresh, latest := NewDetector(nil, discardLogger()).Diff(context.Background(), srv.URL, nil)
	if len(fresh) != DefaultTopK || len(latest) != DefaultTopK {
		t.Errorf("Diff() = %d/%d entries, want %d", len(fresh), len(latest), DefaultTopK)
	}
}

func TestDiffFailOpen(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not a feed", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "<html>nope</html>") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			gate := &fakeGate{}
			fresh, latest := NewDetector(gate, discardLogger()).Diff(context.Background(), srv.URL, nil)
			if fresh != nil || latest != nil {
				t.Errorf("Diff() = %v, %v, want nil, nil", fresh, latest)
			}
			if gate.failures != 1 || gate.successes != 0 {
				t.Errorf("gate failures=%d successes=%d, want 1, 0", gate.failures, gate.successes)
			}
		})
	}
}

func TestDiffSkipsDeniedFeed(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	snaps := NewSnapshots()
	snaps.Set(srv.URL, []models.FeedEntry{{Title: "kept"}})

	d := NewDetector(&fakeGate{deny: true}, discardLogger())
	if fresh := snaps.Check(context.Background(), d, srv.URL); fresh != nil {
		t.Errorf("Check() = %v, want nil", fresh)
	}
	if called {
		t.Error("feed fetched while domain in backoff")
	}
	if got := snaps.Get(srv.URL); len(got) != 1 || got[0].Title != "kept" {
		t.Errorf("snapshot replaced on skipped fetch: %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 3); got != "hél" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("ok", 3); got != "ok" {
		t.Errorf("Truncate() = %q", got)
	}
}
