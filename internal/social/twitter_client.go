// Package social talks to the X (Twitter) API v2.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/retry"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.twitter.com"

const (
	tweetFields = "created_at,public_metrics,author_id,referenced_tweets"
	userFields  = "public_metrics,verified,username"
)

// ErrNoUserContext is returned for calls that need OAuth user credentials.
var ErrNoUserContext = errors.New("twitter user credentials are not configured")

// Credentials holds OAuth 1.0a user credentials and the app bearer token.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

func (c Credentials) hasUserContext() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API returned status %d: %s", e.StatusCode, e.Message)
}

// TwitterClient handles Twitter API v2 interactions. Reads use OAuth user
// context when configured and fall back to the bearer token.
type TwitterClient struct {
	creds      Credentials
	oauth      *oauth1
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// Option configures a TwitterClient.
type Option func(*TwitterClient)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *TwitterClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRetryPolicy replaces the rate limit retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *TwitterClient) { c.policy = p }
}

// NewTwitterClient creates a new Twitter API client.
func NewTwitterClient(creds Credentials, logger *slog.Logger, opts ...Option) *TwitterClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &TwitterClient{
		creds:   creds,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.Policy{
			MaxRetries:     2,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     15 * time.Minute,
			BackoffFactor:  2,
			Jitter:         true,
		},
		logger: logger,
	}
	if creds.hasUserContext() {
		c.oauth = newOAuth1(creds.APIKey, creds.APISecret, creds.AccessToken, creds.AccessTokenSecret)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiTweet struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	AuthorID      string    `json:"author_id"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		LikeCount    int `json:"like_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Title   string `json:"title"`
}

type listResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweetResponse struct {
	Data     apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
}

func (u apiUser) model() models.User {
	return models.User{
		ID:             u.ID,
		Username:       u.Username,
		FollowersCount: u.PublicMetrics.FollowersCount,
		Verified:       u.Verified,
	}
}

func (t apiTweet) model(users map[string]models.User) models.Post {
	p := models.Post{
		ID:        t.ID,
		Text:      t.Text,
		AuthorID:  t.AuthorID,
		CreatedAt: t.CreatedAt,
		Metrics: models.PostMetrics{
			RetweetCount: t.PublicMetrics.RetweetCount,
			LikeCount:    t.PublicMetrics.LikeCount,
			ReplyCount:   t.PublicMetrics.ReplyCount,
			QuoteCount:   t.PublicMetrics.QuoteCount,
		},
	}
	if u, ok := users[t.AuthorID]; ok {
		p.Author = &u
	}
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "replied_to" {
			p.ReferencedPostID = ref.ID
			break
		}
		if ref.Type == "quoted" && p.ReferencedPostID == "" {
			p.ReferencedPostID = ref.ID
		}
	}
	return p
}

func userIndex(users []apiUser) map[string]models.User {
	idx := make(map[string]models.User, len(users))
	for _, u := range users {
		idx[u.ID] = u.model()
	}
	return idx
}

// Me returns the authenticated account.
func (c *TwitterClient) Me(ctx context.Context) (models.User, error) {
	if c.oauth == nil {
		return models.User{}, ErrNoUserContext
	}
	var resp struct {
		Data apiUser `json:"data"`
	}
	q := url.Values{"user.fields": {userFields}}
	if err := c.do(ctx, http.MethodGet, "/2/users/me", q, nil, true, &resp); err != nil {
		return models.User{}, fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return resp.Data.model(), nil
}

// Mentions returns up to limit posts mentioning userID, newest first.
func (c *TwitterClient) Mentions(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	return c.list(ctx, "/2/users/"+url.PathEscape(userID)+"/mentions", nil, "pagination_token", 5, limit, false)
}

// HomeTimeline returns up to limit posts from userID's home timeline.
func (c *TwitterClient) HomeTimeline(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	if c.oauth == nil {
		return nil, ErrNoUserContext
	}
	return c.list(ctx, "/2/users/"+url.PathEscape(userID)+"/timelines/reverse_chronological", nil, "pagination_token", 1, limit, true)
}

// Search returns up to limit recent posts matching query.
func (c *TwitterClient) Search(ctx context.Context, query string, limit int) ([]models.Post, error) {
	return c.list(ctx, "/2/tweets/search/recent", url.Values{"query": {query}}, "next_token", 10, limit, false)
}

// list pages through an endpoint until limit posts were collected or the
// API reports no next page.
func (c *TwitterClient) list(ctx context.Context, path string, base url.Values, tokenParam string, minPage, limit int, userOnly bool) ([]models.Post, error) {
	if limit <= 0 {
		return nil, nil
	}

	var posts []models.Post
	token := ""
	for len(posts) < limit {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("max_results", strconv.Itoa(min(max(limit-len(posts), minPage), 100)))
		q.Set("tweet.fields", tweetFields)
		q.Set("expansions", "author_id")
		q.Set("user.fields", userFields)
		if token != "" {
			q.Set(tokenParam, token)
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodGet, path, q, nil, userOnly, &resp); err != nil {
			return posts, fmt.Errorf("failed to list %s: %w", path, err)
		}

		users := userIndex(resp.Includes.Users)
		for _, t := range resp.Data {
			if len(posts) == limit {
				break
			}
			posts = append(posts, t.model(users))
		}

		token = resp.Meta.NextToken
		if token == "" || len(resp.Data) == 0 {
			break
		}
	}
	return posts, nil
}

// GetPost fetches a single post with its author.
func (c *TwitterClient) GetPost(ctx context.Context, id string) (models.Post, error) {
	q := url.Values{
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id"},
		"user.fields":  {userFields},
	}
	var resp tweetResponse
	if err := c.do(ctx, http.MethodGet, "/2/tweets/"+url.PathEscape(id), q, nil, false, &resp); err != nil {
		return models.Post{}, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	return resp.Data.model(userIndex(resp.Includes.Users)), nil
}

type createTweetRequest struct {
	Text         string        `json:"text"`
	Reply        *replySetting `json:"reply,omitempty"`
	QuoteTweetID string        `json:"quote_tweet_id,omitempty"`
}

type replySetting struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

// Post publishes text and returns the new post ID.
func (c *TwitterClient) Post(ctx context.Context, text string) (string, error) {
	return c.create(ctx, createTweetRequest{Text: text})
}

// Reply publishes text as a reply to id.
func (c *TwitterClient) Reply(ctx context.Context, id, text string) (string, error) {
	return c.create(ctx, createTweetRequest{Text: text, Reply: &replySetting{InReplyToTweetID: id}})
}

// Quote publishes text quoting id.
func (c *TwitterClient) Quote(ctx context.Context, id, text string) (string, error) {
	return c.create(ctx, createTweetRequest{Text: text, QuoteTweetID: id})
}

func (c *TwitterClient) create(ctx context.Context, body createTweetRequest) (string, error) {
	var resp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/2/tweets", nil, body, true, &resp); err != nil {
		return "", fmt.Errorf("failed to post tweet: %w", err)
	}
	c.logger.Info("tweet posted successfully",
		"tweet_id", resp.Data.ID,
		"text_length", len(body.Text))
	return resp.Data.ID, nil
}

// Like likes id as userID.
func (c *TwitterClient) Like(ctx context.Context, userID, id string) error {
	body := map[string]string{"tweet_id": id}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+url.PathEscape(userID)+"/likes", nil, body, true, nil); err != nil {
		return fmt.Errorf("failed to like %s: %w", id, err)
	}
	return nil
}

// Retweet reposts id as userID.
func (c *TwitterClient) Retweet(ctx context.Context, userID, id string) error {
	body := map[string]string{"tweet_id": id}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+url.PathEscape(userID)+"/retweets", nil, body, true, nil); err != nil {
		return fmt.Errorf("failed to retweet %s: %w", id, err)
	}
	return nil
}

// do sends one API call, retrying rate limited and server errors.
func (c *TwitterClient) do(ctx context.Context, method, path string, query url.Values, body any, userOnly bool, out any) error {
	if userOnly && c.oauth == nil {
		return ErrNoUserContext
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	endpoint := c.baseURL + path
	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		fullURL := endpoint
		if len(query) > 0 {
			fullURL += "?" + query.Encode()
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		switch {
		case c.oauth != nil:
			req.Header.Set("Authorization", c.oauth.header(method, endpoint, query))
		case c.creds.BearerToken != "":
			req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
		default:
			return ErrNoUserContext
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				wait := retry.AfterFromResponse(resp, time.Now())
				c.logger.Warn("twitter rate limited", "path", path, "wait", wait)
				return retry.RetryableAfter(apiErr, wait)
			case resp.StatusCode >= 500:
				return retry.Retryable(apiErr)
			default:
				return apiErr
			}
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}

func errorMessage(body []byte) string {
	var parsed struct {
		Errors []apiErrorDetail `json:"errors"`
		apiErrorDetail
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Errors) > 0 {
			e := parsed.Errors[0]
			if e.Message != "" {
				return e.Message
			}
			return e.Detail
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
