package consolidate

import "regexp"

var (
	learningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:learned|discovered|realized|found out|noticed) that ([^.!?]+[.!?])`),
		regexp.MustCompile(`(?i)(?:key insight|important to note|worth remembering):? ([^.!?]+[.!?])`),
		regexp.MustCompile(`(?i)(?:pattern|trend) (?:i noticed|observed|saw):? ([^.!?]+[.!?])`),
	}

	correctionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)user:.*?(?:actually|correction|no,|wrong|mistake|should be|meant to say) ([^.!?]+[.!?])`),
		regexp.MustCompile(`(?is)user:.*?(?:better way|instead try|prefer) ([^.!?]+[.!?])`),
	}

	problemSolutionPattern = regexp.MustCompile(`(?is)(?:problem|issue|challenge):.*?([^.!?]+[.!?]).*?(?:solution|fix|approach):.*?([^.!?]+[.!?])`)

	assistantInsightPattern = regexp.MustCompile(`(?s)assistant:.*?([A-Z][^.!?]{30,}[.!?])`)

	normalizePattern = regexp.MustCompile(`[^\w\s]`)
)

var toolCallMarkers = []string{
	"toolu_", "tool_use", "tool_result", "'input': {", `"input": {`, "'name': '",
}

var lineNumberPattern = regexp.MustCompile(`\d+[→\t].*\d+[→\t].*\d+[→\t]`)

const jsonChars = "{}[]'\""

// isGarbageContent filters tool-call artifacts, line-number dumps, and
// JSON-heavy text out of extraction candidates.
func isGarbageContent(text string) bool {
	stripped := trimSpace(text)
	if len(stripped) < 30 {
		return true
	}
	for _, marker := range toolCallMarkers {
		if contains(stripped, marker) {
			return true
		}
	}
	if lineNumberPattern.MatchString(stripped) {
		return true
	}

	jsonCount := 0
	for _, c := range stripped {
		for _, jc := range jsonChars {
			if c == jc {
				jsonCount++
				break
			}
		}
	}
	if float64(jsonCount)/float64(len(stripped)) > 0.20 {
		return true
	}
	return false
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func contains(s, substr string) bool {
	return len(substr) == 0 || indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m > n {
		return -1
	}
	for i := 0; i <= n-m; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
