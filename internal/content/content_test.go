package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/llm"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

var testBrand = Brand{
	Token:        "$EXMPLR",
	Handle:       "@exmplrai",
	PlatformURL:  "https://app.exmplr.io",
	MarketHandle: "@aixbt",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validThread() []string {
	parts := []string{
		"(1/7) 🔬 AI screened 12,000 trial records this year with $EXMPLR",
		"(2/7) 📈 Trial matching is moving to real-world data",
		"(3/7) 🧬 New models read eligibility criteria directly",
		"(4/7) 💡 Faster recruitment means faster cures with $EXMPLR",
		"(5/7) 🚀 Expect adaptive trials to become the default",
		"(6/7) 🏥 Sponsors are budgeting for AI-first design",
		"(7/7) 🎯 Explore the data at https://app.exmplr.io with $EXMPLR and follow @exmplrai",
	}
	return parts
}

func TestPolish(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips quotes", `"Big news" today`, "Big news today"},
		{"collapses whitespace", "too   many\t spaces \n\n\n\nhere", "too many spaces\n\nhere"},
		{"spaces emoji", "Trials🔬matter", "Trials 🔬 matter"},
		{"groups large integers", "Over 150000 patients and 12500 sites", "Over 150,000 patients and 12,500 sites"},
		{"keeps years", "Results from 2024 and 1999", "Results from 2024 and 1999"},
		{"groups non-year four digits", "About 1500 trials", "About 1,500 trials"},
		{"leaves decimals", "Growth of 3.14159 percent", "Growth of 3.14159 percent"},
		{"leaves already grouped", "Over 1,500 trials", "Over 1,500 trials"},
		{"leaves urls", "See https://example.com/a/123456", "See https://example.com/a/123456"},
		{"leaves handles and cashtags", "@user12345 $TOKEN12345 #tag12345", "@user12345 $TOKEN12345 #tag12345"},
		{"groups dollar amounts", "$2500000 raised", "$2,500,000 raised"},
		{"trims url punctuation", "Read https://example.com/post.", "Read https://example.com/post"},
		{"upgrades platform url", "Visit http://app.exmplr.io/dashboard!", "Visit https://app.exmplr.io/dashboard"},
		{"keeps other http urls", "Visit http://other.example", "Visit http://other.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Polish(tt.in, testBrand); got != tt.want {
				t.Errorf("Polish(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolishTruncates(t *testing.T) {
	got := Polish(strings.Repeat("word ", 100), testBrand)
	if n := utf8.RuneCountInString(got); n > MaxPostRunes {
		t.Fatalf("len = %d, want <= %d", n, MaxPostRunes)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated post should end with ..., got %q", got[len(got)-10:])
	}
}

func TestPolishTruncateKeepsLinks(t *testing.T) {
	link := "https://news.example.com/articles/2026/03/ai-trial-results"
	long := strings.Repeat("word ", 80)

	tests := []struct {
		name      string
		in        string
		wantLink  bool
		wantEmpty bool
	}{
		{"trailing link kept whole", long + link, true, false},
		{"link crossing the cut dropped", strings.Repeat("w", 250) + " " + link + " " + long, false, false},
		{"plain text", "intro " + strings.Repeat("x", 280), false, false},
		{"link leaves no room for text", "see " + "https://example.com/" + strings.Repeat("p", 280), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, MaxPostRunes)
			if tt.wantEmpty {
				if got != "" {
					t.Errorf("truncate() = %q, want empty", got)
				}
				return
			}
			if n := utf8.RuneCountInString(got); n > MaxPostRunes {
				t.Fatalf("len = %d, want <= %d", n, MaxPostRunes)
			}
			if strings.HasSuffix(got, link) != tt.wantLink {
				t.Errorf("truncate() = %q, trailing link kept = %v, want %v", got, !tt.wantLink, tt.wantLink)
			}
			for _, u := range urlPattern.FindAllString(got, -1) {
				if u != link {
					t.Errorf("truncate() left a broken link %q", u)
				}
			}
		})
	}
}

func TestValidateThread(t *testing.T) {
	valid := validThread()
	if parts, err := ValidateThread(strings.Join(valid, "\n\n"), testBrand); err != nil || len(parts) != ThreadLength {
		t.Fatalf("ValidateThread(valid) = %d parts, %v", len(parts), err)
	}

	mutate := func(i int, s string) string {
		parts := validThread()
		parts[i] = s
		return strings.Join(parts, "\n\n")
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"six parts", strings.Join(valid[:6], "\n\n"), "expected 7 tweets"},
		{"bad numbering", mutate(1, "(9/7) 📈 Trial matching"), "tweet 2 has incorrect numbering"},
		{"too long", mutate(2, "(3/7) 🧬 "+strings.Repeat("x", 280)), "tweet 3 exceeds"},
		{"missing token", mutate(3, "(4/7) 💡 Faster recruitment"), "tweet 4 missing $EXMPLR"},
		{"missing handle", mutate(6, "(7/7) 🎯 Explore with $EXMPLR"), "final tweet missing @exmplrai"},
		{"missing emoji", mutate(4, "(5/7) adaptive trials"), "tweet 5 missing emoji"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateThread(tt.text, testBrand)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateThread() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(verr.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", verr.Error(), tt.want)
			}
		})
	}
}

func TestGeneratorFailures(t *testing.T) {
	tests := []struct {
		name  string
		model llm.Model
	}{
		{"model error", llm.Static{Err: errors.New("boom")}},
		{"sentinel", llm.Static{Text: Failed}},
		{"empty", llm.Static{Text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kinds []string
			g := NewGenerator(tt.model, testBrand, Options{}, quietLogger())
			g.OnFailure(func(kind string) { kinds = append(kinds, kind) })

			ctx := context.Background()
			outputs := []string{
				g.NewsPost(ctx, models.FeedEntry{Title: "t", URL: "https://x.example"}, false),
				g.Reply(ctx, "hi", ""),
				g.Quote(ctx, models.Post{Text: "post"}),
				g.Marketing(ctx),
				g.Thread(ctx, "topic", nil),
			}
			for i, out := range outputs {
				if out != Failed {
					t.Errorf("output %d = %q, want %q", i, out, Failed)
				}
			}
			if len(kinds) != len(outputs) {
				t.Errorf("failure callbacks = %v", kinds)
			}
		})
	}
}

func TestGeneratorNewsPostPrompt(t *testing.T) {
	var got llm.Prompt
	model := llm.Func(func(_ context.Context, p llm.Prompt) (string, error) {
		got = p
		return `"New trial data 🔬 https://news.example/a."`, nil
	})
	g := NewGenerator(model, testBrand, Options{Temperature: 0.7, MaxTokens: 200}, quietLogger())

	out := g.NewsPost(context.Background(), models.FeedEntry{Title: "Trial", Summary: "sum", URL: "https://news.example/a"}, true)
	if out != "New trial data 🔬 https://news.example/a" {
		t.Errorf("NewsPost() = %q", out)
	}
	if !strings.Contains(got.User, "weekly research highlight") || !strings.Contains(got.User, "https://news.example/a") {
		t.Errorf("prompt missing weekly framing or URL: %q", got.User)
	}
	if !strings.Contains(got.System, "@exmplrai") {
		t.Errorf("system prompt missing handle: %q", got.System)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 200 {
		t.Errorf("prompt options = %v/%d", got.Temperature, got.MaxTokens)
	}
}

func TestGeneratorThread(t *testing.T) {
	raw := strings.Join(validThread(), "\n\n\n")
	g := NewGenerator(llm.Static{Text: raw}, testBrand, Options{}, quietLogger())

	out := g.Thread(context.Background(), "AI in trials", []Article{{Title: "a", Text: "b"}})
	if IsFailed(out) {
		t.Fatal("Thread() failed on a valid thread")
	}
	parts := SplitThread(out)
	if len(parts) != ThreadLength {
		t.Fatalf("parts = %d", len(parts))
	}
	for i, p := range parts {
		if !strings.HasPrefix(p, fmt.Sprintf("(%d/7)", i+1)) {
			t.Errorf("part %d = %q", i+1, p)
		}
	}
}

func TestIntroThread(t *testing.T) {
	parts := IntroThread(testBrand)
	if len(parts) != ThreadLength {
		t.Fatalf("IntroThread() = %d parts", len(parts))
	}
	for i, p := range parts {
		if utf8.RuneCountInString(p) > MaxPostRunes {
			t.Errorf("part %d too long", i+1)
		}
	}
	if !strings.Contains(parts[6], "@exmplrai") {
		t.Error("final intro part missing handle")
	}
}

func TestIsFailed(t *testing.T) {
	for in, want := range map[string]bool{"failed": true, "": true, " ": true, "ok": false} {
		if got := IsFailed(in); got != want {
			t.Errorf("IsFailed(%q) = %v", in, got)
		}
	}
}
