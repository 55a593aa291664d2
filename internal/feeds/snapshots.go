package feeds

import (
	"context"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Differ compares a feed against a previous batch.
type Differ interface {
	Diff(ctx context.Context, feedURL string, previous []models.FeedEntry) (fresh, latest []models.FeedEntry)
}

var _ Differ = (*Detector)(nil)

// Snapshots holds the last observed batch per feed URL. It is owned by a
// single goroutine.
type Snapshots struct {
	batches map[string][]models.FeedEntry
}

// NewSnapshots returns an empty snapshot set.
func NewSnapshots() *Snapshots {
	return &Snapshots{batches: make(map[string][]models.FeedEntry)}
}

// Get returns the stored batch for feedURL, or nil.
func (s *Snapshots) Get(feedURL string) []models.FeedEntry {
	return s.batches[feedURL]
}

// Set replaces the batch for feedURL. A nil batch is ignored so failed
// fetches keep the previous snapshot.
func (s *Snapshots) Set(feedURL string, batch []models.FeedEntry) {
	if batch == nil {
		return
	}
	s.batches[feedURL] = batch
}

// Len returns the number of feeds with a snapshot.
func (s *Snapshots) Len() int { return len(s.batches) }

// Check diffs feedURL against its snapshot, stores the latest batch and
// returns the new entries.
func (s *Snapshots) Check(ctx context.Context, d Differ, feedURL string) []models.FeedEntry {
	fresh, latest := d.Diff(ctx, feedURL, s.Get(feedURL))
	s.Set(feedURL, latest)
	return fresh
}

// Prime records the current entries of every feed without reporting them as
// new. It returns the number of feeds primed.
func (s *Snapshots) Prime(ctx context.Context, d Differ, feedURLs []string) int {
	primed := 0
	for _, u := range feedURLs {
		if ctx.Err() != nil {
			break
		}
		_, latest := d.Diff(ctx, u, s.Get(u))
		if latest != nil {
			s.Set(u, latest)
			primed++
		}
	}
	return primed
}
