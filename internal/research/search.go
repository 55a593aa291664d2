package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSearchURL is the Google Custom Search JSON endpoint.
const DefaultSearchURL = "https://www.googleapis.com/customsearch/v1"

// Candidate is an article link found by a feed or a search.
type Candidate struct {
	Title string
	URL   string
}

// Searcher finds candidate articles for a topic.
type Searcher interface {
	Search(ctx context.Context, topic string) ([]Candidate, error)
}

// GoogleSearch queries Google Custom Search restricted to a set of sites.
type GoogleSearch struct {
	apiKey   string
	engineID string
	sites    []string
	endpoint string
	client   *http.Client
	limit    int
}

// NewGoogleSearch returns a searcher, or nil when credentials are missing.
func NewGoogleSearch(apiKey, engineID string, sites []string) *GoogleSearch {
	if apiKey == "" || engineID == "" {
		return nil
	}
	return &GoogleSearch{
		apiKey:   apiKey,
		engineID: engineID,
		sites:    sites,
		endpoint: DefaultSearchURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		limit:    5,
	}
}

// Query builds the search expression for topic.
func (g *GoogleSearch) Query(topic string) string {
	if len(g.sites) == 0 {
		return topic
	}
	filters := make([]string, len(g.sites))
	for i, s := range g.sites {
		filters[i] = "site:" + s
	}
	return topic + " (" + strings.Join(filters, " OR ") + ")"
}

// Search returns up to five results for topic.
func (g *GoogleSearch) Search(ctx context.Context, topic string) ([]Candidate, error) {
	q := url.Values{
		"q":   {g.Query(topic)},
		"key": {g.apiKey},
		"cx":  {g.engineID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Items []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if len(out) == g.limit {
			break
		}
		out = append(out, Candidate{Title: item.Title, URL: item.Link})
	}
	return out, nil
}
