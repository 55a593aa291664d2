// Package tier scores timeline posts into discrete interaction levels.
package tier

import (
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Tier is the interaction intensity for a candidate post.
type Tier int

const (
	None Tier = iota
	Like
	Amplify
	Full
)

// DefaultKeywords is the relevance vocabulary used when none is configured.
var DefaultKeywords = []string{"healthcare", "clinical", "research", "medical", "AI", "trials"}

// Input holds the signals the evaluator looks at.
type Input struct {
	FollowerCount int
	RetweetCount  int
	LikeCount     int
	Relevance     int
	AgeHours      float64
	Verified      bool
}

// Evaluate maps the input to a tier. The highest matching tier wins and any
// negative input yields None.
func Evaluate(in Input) Tier {
	if in.FollowerCount < 0 || in.RetweetCount < 0 || in.LikeCount < 0 || in.Relevance < 0 || in.AgeHours < 0 {
		return None
	}

	switch {
	case (in.FollowerCount >= 20000 || in.Verified) &&
		(in.RetweetCount >= 30 || in.LikeCount >= 50) &&
		in.Relevance >= 3 && in.AgeHours <= 3:
		return Full
	case in.FollowerCount >= 10000 &&
		(in.RetweetCount >= 10 || in.LikeCount >= 20) &&
		in.Relevance >= 2 && in.AgeHours <= 6:
		return Amplify
	case (in.Verified || in.FollowerCount >= 5000) &&
		(in.RetweetCount >= 3 || in.LikeCount >= 5) &&
		in.Relevance >= 1:
		return Like
	}
	return None
}

// Actions lists the interactions performed for the tier, in execution order.
func (t Tier) Actions() []models.InteractionType {
	switch t {
	case Full:
		return []models.InteractionType{models.InteractionLike, models.InteractionRetweet, models.InteractionQuote}
	case Amplify:
		return []models.InteractionType{models.InteractionLike, models.InteractionRetweet}
	case Like:
		return []models.InteractionType{models.InteractionLike}
	}
	return nil
}

func (t Tier) String() string {
	switch t {
	case Full:
		return "full"
	case Amplify:
		return "amplify"
	case Like:
		return "like"
	}
	return "none"
}

// Relevance counts the distinct keywords that occur in text, ignoring case.
func Relevance(text string, keywords []string) int {
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(keywords))
	score := 0
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if strings.Contains(lower, k) {
			score++
		}
	}
	return score
}

// ForPost builds evaluator input from a platform post. Posts without an
// expanded author count as zero followers and unverified.
func ForPost(p models.Post, relevance int, ageHours float64) Input {
	in := Input{
		RetweetCount: p.Metrics.RetweetCount,
		LikeCount:    p.Metrics.LikeCount,
		Relevance:    relevance,
		AgeHours:     ageHours,
	}
	if p.Author != nil {
		in.FollowerCount = p.Author.FollowersCount
		in.Verified = p.Author.Verified
	}
	return in
}
