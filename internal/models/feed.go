package models

// FeedEntry is a single item observed in a syndication feed.
type FeedEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// EntryKey identifies a feed entry. Summaries are not part of identity.
type EntryKey struct {
	Title string
	URL   string
}

// Key returns the (title, url) identity of the entry.
func (e FeedEntry) Key() EntryKey {
	return EntryKey{Title: e.Title, URL: e.URL}
}
