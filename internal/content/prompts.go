package content

import (
	"fmt"
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Brand carries the identity strings injected into prompts and validation.
type Brand struct {
	Token        string // e.g. $EXMPLR
	Handle       string // e.g. @exmplrai
	PlatformURL  string // e.g. https://app.exmplr.io
	MarketHandle string // crypto market questions are redirected here
}

// PlatformHost returns the host part of PlatformURL.
func (b Brand) PlatformHost() string {
	host := strings.TrimPrefix(strings.TrimPrefix(b.PlatformURL, "https://"), "http://")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return host
}

const platformDescription = `Exmplr is an AI-driven platform designed to streamline clinical trial data analysis. It uses machine learning to extract, transform and load data from many sources into relational entities, so researchers can search for specific conditions or interventions and get instant results.

Key features:
- Advanced data extraction: pulls critical information from numerous studies, simplifying meta-analyses and systematic reviews.
- Relational entity correlation: correlates trial data as relational entities for deeper insight into how studies connect.
- Accelerated research: cuts the time spent on data collation, extraction and analysis.

Exmplr also offers customizable workflows from literature analysis to data interpretation, and on-premise deployment for complete control over data.`

const outputRules = `Make sure to only return the tweet. Nothing else must be added to the returned value.
Do not add any unwanted mentions. Do not add any hashtags.`

func systemPrompt(b Brand) string {
	return fmt.Sprintf(`You are %s, the official account of Exmplr on X. You write concise, professional, data-driven posts about clinical research, healthcare AI and decentralized science.

%s`, b.Handle, platformDescription)
}

func newsPrompt(entry models.FeedEntry, weekly bool) string {
	kind := "a news tweet"
	if weekly {
		kind = "a weekly research highlight tweet"
	}
	return fmt.Sprintf(`Analyze the article below and write %s that includes the URL, in a structured way.

Title: %s
Summary: %s
URL: %s

Keep it under 280 characters.
%s`, kind, entry.Title, entry.Summary, entry.URL, outputRules)
}

func replyPrompt(b Brand, text, reference string) string {
	var conversation string
	if reference != "" {
		conversation = fmt.Sprintf("Original post: %s\nReply to us: %s", reference, text)
	} else {
		conversation = text
	}
	return fmt.Sprintf(`Write a reply tweet to the conversation below, in an informative way.

%s

If the conversation is random, answer with professional small talk.
If it asks about our services, answer from the platform information you were given.
If the question is about the crypto market or a currency, redirect it to %s.
Keep it under 280 characters.
%s`, conversation, b.MarketHandle, outputRules)
}

func quotePrompt(p models.Post) string {
	return fmt.Sprintf(`Write a short quote-tweet commentary on the post below. Add one concrete insight that connects it to clinical research or healthcare AI.

Post: %s

Keep it under 240 characters.
%s`, p.Text, outputRules)
}

func marketingPrompt(b Brand) string {
	return fmt.Sprintf(`Write a promotional tweet for Exmplr. Highlight one specific capability of the platform and why it matters to researchers.
Mention %s once and end with %s.
Use one relevant emoji. Keep it under 280 characters.
%s`, b.Token, b.PlatformURL, outputRules)
}

func threadPrompt(b Brand, topic string, articles []Article) string {
	var sb strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&sb, "\n\nArticle: %s\n%s", a.Title, a.Text)
	}

	return fmt.Sprintf(`Create a compelling research thread about '%[1]s' based on these articles.

Content guidelines:
1. Key elements to include:
   - Latest statistics and market data
   - Industry trends and developments
   - Technology breakthroughs
   - Future implications
   - Real-world impact
   - Specific metrics (use exact numbers)

2. Branding requirements:
   - Mention %[2]s in tweets 1, 4 and 7
   - Include %[3]s in the final tweet
   - Use the platform URL (%[4]s) only in the final tweet
   - Maintain a professional, authoritative tone

3. Format requirements:
   - Exactly 7 tweets separated by a blank line
   - Each tweet must start with "(X/7)"
   - One relevant emoji after the number
   - Keep each tweet under 280 characters
   - Use commas in large numbers (e.g. "1,500" not "1500")
   - Ensure proper spacing around emojis

4. Content structure:
   Tweet 1: Hook with a compelling statistic + %[2]s
   Tweet 2: Current state or trend
   Tweet 3: Key development or breakthrough
   Tweet 4: Impact + %[2]s
   Tweet 5: Future implications
   Tweet 6: Industry perspective
   Tweet 7: Call to action + %[2]s + %[3]s

5. Style guide:
   - Start each tweet with a fresh perspective
   - Avoid redundant phrases
   - Use active voice
   - Be specific and data-driven

Articles content:%[5]s`, topic, b.Token, b.Handle, b.PlatformURL, sb.String())
}

// IntroThread returns the fixed seven-part introduction thread.
func IntroThread(b Brand) []string {
	return []string{
		fmt.Sprintf("👋 Hello! I'm %s Agent, your AI-powered clinical research assistant. I help analyze trials, process research data, and provide real-time insights to advance healthcare innovation! 🌱", b.Token),
		"📊 I'm trained to help with:\n- Clinical trial searches\n- Research analysis\n- Healthcare AI trends\n- DeSci developments\nYour feedback helps me learn and improve!",
		"🔬 I monitor multiple sources:\n- PubMed research\n- ArXiv papers\n- Tech journals\n- Industry blogs\nI'm constantly expanding my knowledge base!",
		fmt.Sprintf("💪 %s's AI powers my learning:\n- Adaptive responses\n- Pattern recognition\n- Context understanding\n- Personalized insights\nGetting better with each interaction!", b.Token),
		"🚀 My regular updates:\n- News every 50min\n- Marketing insights 3x daily\n- Weekly research threads\n- Custom responses\nConstantly improving with real-time feedback!",
		"🌐 I love feedback! Mention me for:\n- Trial searches\n- Research questions\n- Data analysis\n- Platform features\nYour input shapes my development!",
		fmt.Sprintf("✨ Join me on this learning journey! %s is transforming clinical research, and I'm growing smarter every day. Follow %s for updates and help me evolve! 🤖💡", b.Token, b.Handle),
	}
}
