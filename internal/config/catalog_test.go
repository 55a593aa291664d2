package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadCatalogDefault(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}

	if len(cat.NewsFeeds()) == 0 {
		t.Fatal("expected built-in news feeds")
	}
	if len(cat.ResearchFeeds()) == 0 {
		t.Fatal("expected built-in research feeds")
	}

	want := []string{"healthcare", "clinical", "research", "medical", "AI", "trials"}
	if diff := cmp.Diff(want, cat.RelevanceKeywords); diff != "" {
		t.Errorf("relevance keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
feeds:
  news:
    - https://a.example/feed
    - https://b.example/feed
  extra:
    - https://b.example/feed
news_categories: [news, extra]
research_categories: [extra]
relevance_keywords: [ai]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}

	want := []string{"https://a.example/feed", "https://b.example/feed"}
	if diff := cmp.Diff(want, cat.NewsFeeds()); diff != "" {
		t.Errorf("news feeds mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown category": "feeds: {a: [https://x]}\nnews_categories: [b]\nrelevance_keywords: [ai]\n",
		"no news feeds":    "feeds: {a: []}\nnews_categories: [a]\nrelevance_keywords: [ai]\n",
		"no keywords":      "feeds: {a: [https://x]}\nnews_categories: [a]\n",
		"malformed":        "feeds: [",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatalf("write catalog: %v", err)
			}
			if _, err := LoadCatalog(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read catalog") {
		t.Fatalf("expected read error, got %v", err)
	}
}
