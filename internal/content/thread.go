package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ThreadLength is the number of posts in a research thread.
const ThreadLength = 7

var partSeparator = regexp.MustCompile(`\n\s*\n`)

// ValidationError lists every rule a generated thread broke.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "thread validation failed: " + strings.Join(e.Problems, "; ")
}

// SplitThread splits text into blank-line separated, trimmed parts.
func SplitThread(text string) []string {
	var parts []string
	for _, p := range partSeparator.Split(strings.TrimSpace(text), -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// ValidateThread checks a seven-part research thread and returns its parts.
// Every part must carry its (i/7) prefix, fit in a post and contain an emoji.
// Parts 1, 4 and 7 must mention the token and part 7 the handle.
func ValidateThread(text string, b Brand) ([]string, error) {
	parts := SplitThread(text)

	var problems []string
	if len(parts) != ThreadLength {
		problems = append(problems, fmt.Sprintf("expected %d tweets, found %d", ThreadLength, len(parts)))
	}

	for i, part := range parts {
		n := i + 1
		if !strings.HasPrefix(part, fmt.Sprintf("(%d/%d)", n, ThreadLength)) {
			problems = append(problems, fmt.Sprintf("tweet %d has incorrect numbering", n))
		}
		if utf8.RuneCountInString(part) > MaxPostRunes {
			problems = append(problems, fmt.Sprintf("tweet %d exceeds %d characters", n, MaxPostRunes))
		}
		if (n == 1 || n == 4 || n == ThreadLength) && !strings.Contains(part, b.Token) {
			problems = append(problems, fmt.Sprintf("tweet %d missing %s", n, b.Token))
		}
		if n == ThreadLength && !strings.Contains(part, b.Handle) {
			problems = append(problems, fmt.Sprintf("final tweet missing %s", b.Handle))
		}
		if !hasSupplementaryEmoji(part) {
			problems = append(problems, fmt.Sprintf("tweet %d missing emoji", n))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return parts, nil
}

func hasSupplementaryEmoji(s string) bool {
	for _, r := range s {
		if r >= 0x10000 {
			return true
		}
	}
	return false
}
