package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
)

// HIPAAWarning is sent instead of an answer when a question contains
// personal health details.
const HIPAAWarning = "As per HIPAA guidelines, we cannot respond to questions containing Personally Identifiable Information (PII) or Protected Health Information (PHI). " +
	"We recommend deleting this post to protect your privacy and avoid sharing sensitive details publicly."

var trialTemplates = []string{
	"🔍 Discover relevant clinical trials for %s targeting %s. Explore detailed insights on our analytics platform:\n%s",
	"📊 We've found clinical trials for %s suitable for %s. Access comprehensive trial data through our insights platform:\n%s",
	"🎯 Looking for %s clinical trials? We've curated trials suitable for %s. Dive deeper into the data on our insights platform:\n%s",
	"💡 Explore curated clinical trials for %s (%s). Get detailed analytics and insights on our platform:\n%s",
}

var healthcareTemplates = []string{
	"While we focus on clinical trial analytics, we recommend consulting healthcare providers for personalized medical advice. Learn more about our data insights platform at %s",
	"For medical advice, please consult qualified healthcare professionals. To explore clinical trial data and research insights, visit our platform at %s",
	"Your health is important - please seek professional medical guidance. Meanwhile, discover clinical research insights on our platform at %s",
	"We recommend consulting healthcare professionals for medical advice. Explore clinical trial analytics and research data on our platform at %s",
}

// Replier generates free-form replies.
type Replier interface {
	Reply(ctx context.Context, text, reference string) string
}

// Router picks the reply for a question based on its category.
type Router struct {
	classifier *Classifier
	replier    Replier
	brand      content.Brand
	logger     *slog.Logger
	pick       func(n int) int
}

// NewRouter creates a router. Templates are chosen with math/rand.
func NewRouter(c *Classifier, replier Replier, brand content.Brand, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{classifier: c, replier: replier, brand: brand, logger: logger, pick: rand.IntN}
}

// Respond answers text posted in reply to reference (which may be empty).
// It returns content.ErrGenerationFailed when the model could not produce a reply.
func (r *Router) Respond(ctx context.Context, text, reference string) (string, error) {
	category := r.classifier.Classify(ctx, text)

	if category != Random && ContainsPII(text) {
		r.logger.Warn("query contains personal details, sending warning", "category", category)
		return HIPAAWarning, nil
	}

	switch category {
	case ClinicalTrials:
		return r.trialReply(text), nil
	case GenericHealthcare:
		return fmt.Sprintf(healthcareTemplates[r.pick(len(healthcareTemplates))], r.platformHost()), nil
	case PriceTrading:
		return fmt.Sprintf("For token prices and market analysis, %s has you covered. We focus on clinical research insights.", r.brand.MarketHandle), nil
	default:
		reply := r.replier.Reply(ctx, text, reference)
		if content.IsFailed(reply) {
			return "", content.ErrGenerationFailed
		}
		return reply, nil
	}
}

func (r *Router) trialReply(text string) string {
	q := ParseTrialQuery(text)
	link := Link(r.brand.PlatformURL, q.Fields())

	ageText := "patients of all ages"
	if q.Age > 0 {
		ageText = fmt.Sprintf("patients aged %d", q.Age)
	}
	tmpl := trialTemplates[r.pick(len(trialTemplates))]
	return fmt.Sprintf(tmpl, strings.ToUpper(q.Condition), ageText, link)
}

func (r *Router) platformHost() string {
	if host := r.brand.PlatformHost(); host != "" {
		return host
	}
	return "app.exmplr.io"
}
