package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

const (
	interactionsFile = "interactions.json"
	rateLimitsFile   = "rate_limits.json"
	researchFile     = "research_cache.json"
	articleQueueFile = "article_queue.json"

	// MaxFileInteractions bounds the interaction log kept on disk.
	MaxFileInteractions = 1000
)

// JSONStore keeps each table in its own JSON file under a directory.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *JSONStore) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// RecordInteraction appends rec, keeping only the newest MaxFileInteractions.
func (s *JSONStore) RecordInteraction(_ context.Context, rec models.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.InteractionRecord
	if err := s.load(interactionsFile, &records); err != nil {
		return err
	}
	records = append(records, rec)
	if len(records) > MaxFileInteractions {
		records = records[len(records)-MaxFileInteractions:]
	}
	return s.save(interactionsFile, records)
}

func (s *JSONStore) RecentInteractions(_ context.Context, limit int) ([]models.InteractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.InteractionRecord
	if err := s.load(interactionsFile, &records); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return head(records, limit), nil
}

func (s *JSONStore) HasInteraction(_ context.Context, tweetID string, kind models.InteractionType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.InteractionRecord
	if err := s.load(interactionsFile, &records); err != nil {
		return false, err
	}
	for _, r := range records {
		if r.TweetID == tweetID && r.Type == kind {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONStore) GetRateLimit(_ context.Context, domain string) (*models.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := map[string]models.RateLimitRecord{}
	if err := s.load(rateLimitsFile, &limits); err != nil {
		return nil, err
	}
	rec, ok := limits[domain]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *JSONStore) UpsertRateLimit(_ context.Context, rec models.RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := map[string]models.RateLimitRecord{}
	if err := s.load(rateLimitsFile, &limits); err != nil {
		return err
	}
	if prev, ok := limits[rec.Domain]; ok && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	limits[rec.Domain] = rec
	return s.save(rateLimitsFile, limits)
}

func (s *JSONStore) ListRateLimits(_ context.Context) ([]models.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := map[string]models.RateLimitRecord{}
	if err := s.load(rateLimitsFile, &limits); err != nil {
		return nil, err
	}
	out := make([]models.RateLimitRecord, 0, len(limits))
	for _, rec := range limits {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (s *JSONStore) SaveResearch(_ context.Context, entry models.ResearchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.ResearchEntry
	if err := s.load(researchFile, &entries); err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.save(researchFile, entries)
}

func (s *JSONStore) LatestResearch(_ context.Context, topic string) (*models.ResearchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.ResearchEntry
	if err := s.load(researchFile, &entries); err != nil {
		return nil, err
	}
	var latest *models.ResearchEntry
	for i := range entries {
		if entries[i].Topic != topic {
			continue
		}
		if latest == nil || entries[i].CreatedAt.After(latest.CreatedAt) {
			latest = &entries[i]
		}
	}
	return latest, nil
}

func (s *JSONStore) RecentResearch(_ context.Context, limit int) ([]models.ResearchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.ResearchEntry
	if err := s.load(researchFile, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return head(entries, limit), nil
}

func (s *JSONStore) EnqueueArticle(_ context.Context, article models.QueuedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []models.QueuedArticle
	if err := s.load(articleQueueFile, &queue); err != nil {
		return err
	}
	queue = append(queue, article)
	return s.save(articleQueueFile, queue)
}

func (s *JSONStore) LastScheduled(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []models.QueuedArticle
	if err := s.load(articleQueueFile, &queue); err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, a := range queue {
		if a.ScheduledFor.After(last) {
			last = a.ScheduledFor
		}
	}
	return last, nil
}

func (s *JSONStore) DueArticles(_ context.Context, now time.Time, limit int) ([]models.QueuedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []models.QueuedArticle
	if err := s.load(articleQueueFile, &queue); err != nil {
		return nil, err
	}
	var due []models.QueuedArticle
	for _, a := range queue {
		if a.Status == models.ArticleQueued && !a.ScheduledFor.After(now) {
			due = append(due, a)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	return head(due, limit), nil
}

func (s *JSONStore) MarkArticle(_ context.Context, id string, status models.ArticleStatus, errMsg, postedID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []models.QueuedArticle
	if err := s.load(articleQueueFile, &queue); err != nil {
		return err
	}
	for i := range queue {
		if queue[i].ID != id {
			continue
		}
		queue[i].Status = status
		queue[i].ErrorMessage = errMsg
		queue[i].PostedTweetID = postedID
		queue[i].UpdatedAt = time.Now().UTC()
		return s.save(articleQueueFile, queue)
	}
	return fmt.Errorf("article %s not found", id)
}

func (s *JSONStore) ListArticles(_ context.Context, limit int) ([]models.QueuedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []models.QueuedArticle
	if err := s.load(articleQueueFile, &queue); err != nil {
		return nil, err
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].ScheduledFor.After(queue[j].ScheduledFor)
	})
	return head(queue, limit), nil
}

// Close is a no-op; every write is flushed immediately.
func (s *JSONStore) Close() error { return nil }

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
