package segment

import (
	"regexp"
	"strings"
)

// JoinMarker is inserted where a continuation from the next page is
// appended to its segment, so the seam stays visible in stored text.
const JoinMarker = "\n[이어서] "

// continuationMarkers are the phrases a segment ends with when its article
// carries over to the next page.
var continuationMarkers = []string{
	"(계속)", "(다음 면에 계속)", "(다음 페이지에 계속)", "→", "...계속",
}

// sentenceEndExpr matches text that closes properly: sentence-final
// punctuation, optionally followed by closing quotes or brackets.
var sentenceEndExpr = regexp.MustCompile(`[.!?。！？]["')\]」』]?\s*$`)

// EndsWithContinuationMarker reports whether a segment body closes with an
// explicit carry-over phrase.
func EndsWithContinuationMarker(body string) bool {
	trimmed := strings.TrimSpace(body)
	for _, m := range continuationMarkers {
		if strings.HasSuffix(trimmed, m) {
			return true
		}
	}
	return false
}

// StartsMidSentence reports whether a fragment opens as a continuation:
// no title of its own and a first line that reads like the middle of a
// sentence rather than a heading.
func StartsMidSentence(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return false
	}
	if hasOwnTitle(trimmed) {
		return false
	}
	first := strings.SplitN(trimmed, "\n", 2)[0]
	// A heading is short; a continuation line runs long without closing.
	return len([]rune(first)) > 30 && !sentenceEndExpr.MatchString(first)
}

// IsContinuation decides whether the first segment of a page manifestly
// continues the last segment of the previous page. The recognition engine
// may also confirm this with a two-image provider call; this is the pure
// text heuristic used when that call is unavailable or inconclusive.
func IsContinuation(prevBody, nextBody string) bool {
	if strings.TrimSpace(prevBody) == "" || strings.TrimSpace(nextBody) == "" {
		return false
	}
	if EndsWithContinuationMarker(prevBody) {
		return true
	}
	// An unfinished final sentence plus a titleless opening on the next
	// page reads as one article split by the page boundary.
	prevOpen := !sentenceEndExpr.MatchString(strings.TrimSpace(prevBody))
	return prevOpen && StartsMidSentence(nextBody)
}

// MergeContinuation appends the continuing text onto the previous segment
// body with an explicit join marker. The continuing page's standalone
// segment is discarded by the caller after this merge.
func MergeContinuation(prevBody, contBody string) string {
	return strings.TrimSpace(prevBody) + JoinMarker + strings.TrimSpace(contBody)
}
