package content

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPostRunes is the platform limit for a single post.
const MaxPostRunes = 280

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	urlPattern      = regexp.MustCompile(`(?i)\bhttps?://[^\s]+`)
	token           = regexp.MustCompile(`\S+`)
)

// Polish normalizes a generated single post and truncates it to MaxPostRunes.
func Polish(text string, b Brand) string {
	return truncate(normalize(text, b), MaxPostRunes)
}

// normalize applies every rewrite except truncation.
func normalize(text string, b Brand) string {
	text = stripQuotes(text)
	text = collapseWhitespace(text)
	text = spaceEmoji(text)
	text = groupNumbers(text)
	text = normalizeURLs(text, b.PlatformHost())
	return strings.TrimSpace(text)
}

func stripQuotes(text string) string {
	return strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(text)
}

func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}

// isEmoji reports pictographic runes, including the supplementary planes.
func isEmoji(r rune) bool {
	return r >= 0x10000 || (r >= 0x2600 && r <= 0x27BF)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// spaceEmoji separates emoji from directly adjacent letters and digits.
func spaceEmoji(text string) string {
	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			if (isEmoji(prev) && isWordRune(r)) || (isWordRune(prev) && isEmoji(r)) {
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// groupNumbers adds thousands separators to bare integers. Four-digit values
// between 1900 and 2099 are treated as years. URLs, handles, cashtags and
// hashtags are left alone.
func groupNumbers(text string) string {
	return token.ReplaceAllStringFunc(text, func(tok string) string {
		if skipToken(tok) {
			return tok
		}
		return groupToken(tok)
	})
}

func skipToken(tok string) bool {
	t := strings.TrimLeft(tok, "([")
	if t == "" {
		return true
	}
	switch t[0] {
	case '@', '#':
		return true
	case '$':
		if len(t) > 1 && unicode.IsLetter(rune(t[1])) {
			return true
		}
	}
	lower := strings.ToLower(t)
	return strings.Contains(lower, "://") || strings.HasPrefix(lower, "www.")
}

func groupToken(tok string) string {
	runes := []rune(tok)
	var sb strings.Builder
	for i := 0; i < len(runes); {
		if !unicode.IsDigit(runes[i]) || runes[i] > unicode.MaxASCII {
			sb.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
			j++
		}
		digits := string(runes[i:j])
		if groupable(runes, i, j) {
			digits = withCommas(digits)
		}
		sb.WriteString(digits)
		i = j
	}
	return sb.String()
}

// groupable decides whether the digit run runes[start:end] is a bare integer.
func groupable(runes []rune, start, end int) bool {
	if start > 0 {
		switch prev := runes[start-1]; {
		case prev == '.' || prev == ',' || prev == '/' || prev == ':':
			return false
		case unicode.IsLetter(prev):
			return false
		}
	}
	if end < len(runes) && (runes[end] == ',' || runes[end] == ':') && end+1 < len(runes) && unicode.IsDigit(runes[end+1]) {
		return false
	}
	n := end - start
	if n >= 5 {
		return runes[start] != '0'
	}
	if n == 4 {
		v, _ := strconv.Atoi(string(runes[start:end]))
		return runes[start] != '0' && (v < 1900 || v > 2099)
	}
	return false
}

func withCommas(digits string) string {
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// normalizeURLs drops trailing punctuation from URLs and upgrades the
// platform host to https.
func normalizeURLs(text, platformHost string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		trimmed := strings.TrimRight(u, ".,;:!?'")
		for strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, ")") > strings.Count(trimmed, "(") {
			trimmed = strings.TrimSuffix(trimmed, ")")
		}

		if platformHost != "" && strings.HasPrefix(strings.ToLower(trimmed), "http://"+strings.ToLower(platformHost)) {
			trimmed = "https://" + trimmed[len("http://"):]
		}
		return trimmed
	})
}

// truncate cuts text to n runes, ending with "..." when shortened. Links are
// never cut: a trailing link is kept whole after the shortened body, and a
// link crossing the cut is dropped. It returns "" when a trailing link alone
// leaves no room for text.
func truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	if locs := urlPattern.FindAllStringIndex(text, -1); len(locs) > 0 && locs[len(locs)-1][1] == len(text) {
		start := locs[len(locs)-1][0]
		link := text[start:]
		budget := n - utf8.RuneCountInString(link) - 1
		body := strings.TrimRightFunc(text[:start], unicode.IsSpace)
		if budget < 4 || body == "" {
			return ""
		}
		return cut(body, budget) + " " + link
	}
	return cut(text, n)
}

// cut shortens text to at most n runes ending with "...", backing off to
// before any link that would be split.
func cut(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	end := len(string([]rune(text)[:n-3]))
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		if loc[0] < end && end < loc[1] {
			end = loc[0]
			break
		}
	}
	return strings.TrimRightFunc(text[:end], unicode.IsSpace) + "..."
}
