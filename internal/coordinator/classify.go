package coordinator

import (
	"regexp"
	"strings"
)

// imperativeTokens classifies a free-text todo item as a shell command when
// its text contains any of these tokens (spec.md §4.8).
var imperativeTokens = []string{
	"run", "execute", "build", "compile", "make", "install", "test",
	"cd", "ls", "pwd", "git", "docker",
}

// isShellCommandItem reports whether text should be routed to the Command
// Runner rather than the File Writer.
func isShellCommandItem(text string) bool {
	lower := strings.ToLower(text)
	for _, tok := range imperativeTokens {
		if containsWord(lower, tok) {
			return true
		}
	}
	return false
}

func containsWord(haystack, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(haystack)
}

var (
	runPrefixPattern     = regexp.MustCompile(`(?i)\b(run|execute)\s+(.+)`)
	pythonScriptPattern  = regexp.MustCompile(`\bpython3?\s+\S+\.py\b.*`)
	looksLikeCommandPattern = regexp.MustCompile(`^[a-zA-Z0-9_./-]+(\s+[^\s].*)?$`)
)

// extractCommand applies a small set of heuristics to pull an executable
// command string out of free text (spec.md §4.8): recognize "python3 X.py"
// verbatim, extract text following "run "/"execute ", map "build"/"test" to
// make/make test, and pass through text that already looks like a command.
func extractCommand(text string) string {
	trimmed := strings.TrimSpace(text)

	if m := pythonScriptPattern.FindString(trimmed); m != "" {
		return strings.TrimSpace(m)
	}
	if m := runPrefixPattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[2])
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "build"):
		return "make"
	case strings.Contains(lower, "test"):
		return "make test"
	}

	if looksLikeCommandPattern.MatchString(trimmed) {
		return trimmed
	}
	return trimmed
}
