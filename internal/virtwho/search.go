package virtwho

import (
	"regexp"

	"go.uber.org/zap"
)

// countMatches counts non-overlapping, case-insensitive matches of the
// pattern in text. An invalid pattern is a harness bug, not a run
// failure; it is logged and counted as zero.
func countMatches(text, pattern string) int {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		zap.S().Named("analyzer").Warnw("invalid search pattern", "pattern", pattern, "err", err)
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

// hasMatch reports whether the pattern occurs in text at least once.
func hasMatch(text, pattern string) bool {
	return countMatches(text, pattern) > 0
}

// firstCapture returns the first capture group of the first match,
// or "" when the pattern does not match.
func firstCapture(text, pattern string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		zap.S().Named("analyzer").Warnw("invalid search pattern", "pattern", pattern, "err", err)
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// allCaptures returns the first capture group of every match.
func allCaptures(text, pattern string) []string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		zap.S().Named("analyzer").Warnw("invalid search pattern", "pattern", pattern, "err", err)
		return nil
	}
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) >= 2 {
			out = append(out, m[1])
		}
	}
	return out
}
