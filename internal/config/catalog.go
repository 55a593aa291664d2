package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog lists the feeds, queries and keyword vocabularies the agent works from.
type Catalog struct {
	Feeds              map[string][]string `yaml:"feeds"`
	NewsCategories     []string            `yaml:"news_categories"`
	ResearchCategories []string            `yaml:"research_categories"`
	SearchQueries      []string            `yaml:"search_queries"`
	TargetKeywords     []string            `yaml:"target_keywords"`
	RelevanceKeywords  []string            `yaml:"relevance_keywords"`
	SearchSites        []string            `yaml:"search_sites"`
	BlockedDomains     []string            `yaml:"blocked_domains"`
	ResearchTopics     []string            `yaml:"research_topics"`
}

// LoadCatalog reads a YAML catalogue from path, or the built-in one when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		data = raw
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cat.validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// NewsFeeds returns the feed URLs of all news categories, in catalogue order.
func (c Catalog) NewsFeeds() []string {
	return c.collect(c.NewsCategories)
}

// ResearchFeeds returns the feed URLs mined for research threads.
func (c Catalog) ResearchFeeds() []string {
	return c.collect(c.ResearchCategories)
}

func (c Catalog) collect(categories []string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, category := range categories {
		for _, u := range c.Feeds[category] {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

func (c Catalog) validate() error {
	for _, group := range [][]string{c.NewsCategories, c.ResearchCategories} {
		for _, category := range group {
			if _, ok := c.Feeds[category]; !ok {
				return fmt.Errorf("catalog: unknown feed category %q", category)
			}
		}
	}
	if len(c.NewsFeeds()) == 0 {
		return fmt.Errorf("catalog: at least one news feed is required")
	}
	if len(c.RelevanceKeywords) == 0 {
		return fmt.Errorf("catalog: relevance_keywords must not be empty")
	}
	return nil
}
