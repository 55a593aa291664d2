// Package classifier routes incoming questions to a reply strategy.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/llm"
)

// Category is the kind of question a post asks.
type Category string

const (
	ClinicalTrials    Category = "clinical_trials"
	GenericHealthcare Category = "generic_healthcare"
	ProductInquiry    Category = "product_inquiry"
	LiveData          Category = "live_data"
	PriceTrading      Category = "price_trading"
	Random            Category = "random"
)

var categories = []Category{ClinicalTrials, GenericHealthcare, ProductInquiry, LiveData, PriceTrading, Random}

// Parse maps a model answer to a category, defaulting to GenericHealthcare.
func Parse(answer string) Category {
	a := strings.ToLower(strings.Trim(strings.TrimSpace(answer), `"'.`))
	for _, c := range categories {
		if a == string(c) {
			return c
		}
	}
	return GenericHealthcare
}

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is\b`),
	regexp.MustCompile(`(?i)\bi am\b`),
	regexp.MustCompile(`(?i)\bi have\b`),
}

// ContainsPII reports whether text looks like someone describing themselves.
func ContainsPII(text string) bool {
	for _, p := range piiPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Classifier asks the model to categorize a query.
type Classifier struct {
	model  llm.Model
	logger *slog.Logger
}

// New creates a classifier.
func New(model llm.Model, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, logger: logger}
}

// Classify never fails; errors and unknown answers yield GenericHealthcare.
func (c *Classifier) Classify(ctx context.Context, text string) Category {
	answer, err := c.model.Complete(ctx, llm.Prompt{
		User:        classifyPrompt(text),
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("failed to classify query", "error", err)
		return GenericHealthcare
	}
	category := Parse(answer)
	c.logger.Info("classified query", "category", category)
	return category
}

func classifyPrompt(query string) string {
	return fmt.Sprintf(`You are a query classifier for a clinical trial assistant.
Classify the following query into one of these categories:
1. Clinical Trials: questions about recruitment, trial phases, or related topics.
2. Generic Healthcare: general healthcare or drug-related questions.
3. Product Inquiry: questions about Exmplr's services or offerings.
4. Live Data: questions requiring up-to-date information.
5. Price Trading: questions about token prices, crypto markets or trading.
6. Random: anything other than healthcare, such as simple questions to the bot.
Query: %q

Respond with only one of: "clinical_trials", "generic_healthcare", "product_inquiry", "live_data", "price_trading", "random".
If unsure, default to "generic_healthcare".`, query)
}
