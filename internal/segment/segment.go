// Package segment splits a page's recognized text into article/section
// units. Pages from different eras of the publication use different
// delimiter conventions, so detection tries each convention in a fixed
// priority and uses the first one present.
package segment

import (
	"regexp"
	"strings"
)

const (
	// MinFragmentLen is the size below which an untitled split fragment is
	// merged into the fragment before it rather than kept standalone.
	MinFragmentLen = 200

	// MinPageLen is the minimum recognized-text length for a page to
	// produce any segment at all.
	MinPageLen = 100
)

// The three delimiter conventions, in detection priority order.
var (
	headerExpr    = regexp.MustCompile(`(?m)^#{2,}[ \t]*(.*)$`)
	separatorExpr = regexp.MustCompile(`(?m)^[-=_]{4,}[ \t]*$`)
	counterExpr   = regexp.MustCompile(`(?m)^\[\d+\][ \t]*`)
)

// titleExpr matches an explicit title line at the start of a fragment.
var titleExpr = regexp.MustCompile(`^[ \t]*(제목|주제|설교)[:：]`)

// SplitPage divides one page's recognized text into ordered segment bodies.
// The first matching convention wins; with no convention present, text at
// or above MinPageLen becomes a single segment and shorter text yields
// nothing. Undersized untitled fragments merge into their predecessor,
// never dropped.
func SplitPage(text string) []string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < MinPageLen && !headerExpr.MatchString(text) &&
		!separatorExpr.MatchString(text) && !counterExpr.MatchString(text) {
		return nil
	}

	var fragments []string
	switch {
	case headerExpr.MatchString(text):
		fragments = splitAt(text, headerExpr, true)
	case separatorExpr.MatchString(text):
		fragments = splitAt(text, separatorExpr, false)
	case counterExpr.MatchString(text):
		fragments = splitAt(text, counterExpr, true)
	default:
		return []string{text}
	}

	return mergeUndersized(fragments)
}

// splitAt splits text at every match of expr. When keepDelimiter is set the
// matched line's text (minus the marker itself) stays at the head of its
// fragment; separator lines are discarded entirely.
func splitAt(text string, expr *regexp.Regexp, keepDelimiter bool) []string {
	locs := expr.FindAllStringIndex(text, -1)
	var fragments []string

	// Content before the first delimiter: heading and counter markers open
	// their unit, so leading text joins the first fragment. A separator
	// line divides whole articles, so there the leading text is the first
	// article itself.
	var preamble string
	if locs[0][0] > 0 {
		preamble = strings.TrimSpace(text[:locs[0][0]])
	}
	if preamble != "" && !keepDelimiter {
		fragments = append(fragments, preamble)
		preamble = ""
	}

	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		var frag string
		if keepDelimiter {
			head := strings.TrimLeft(text[loc[0]:loc[1]], "#[ \t")
			head = strings.TrimRight(head, "] \t")
			body := text[loc[1]:end]
			frag = strings.TrimSpace(head + "\n" + strings.TrimSpace(body))
		} else {
			frag = strings.TrimSpace(text[loc[1]:end])
		}

		if i == 0 && preamble != "" {
			frag = preamble + "\n" + frag
		}
		if frag != "" {
			fragments = append(fragments, frag)
		}
	}

	return fragments
}

// mergeUndersized folds short, untitled fragments into the preceding
// fragment. A short first fragment merges forward instead, so nothing is
// ever dropped.
func mergeUndersized(fragments []string) []string {
	var out []string
	for _, frag := range fragments {
		short := len([]rune(frag)) < MinFragmentLen
		if short && !hasOwnTitle(frag) && len(out) > 0 {
			out[len(out)-1] = out[len(out)-1] + "\n" + frag
			continue
		}
		out = append(out, frag)
	}

	// A lone short leading fragment that never found a successor to merge
	// into is still returned as-is.
	return out
}

// hasOwnTitle reports whether a fragment carries its own title: either an
// explicit title line or a non-empty heading line followed by more content.
func hasOwnTitle(frag string) bool {
	lines := strings.SplitN(frag, "\n", 3)
	if len(lines) == 0 {
		return false
	}
	if titleExpr.MatchString(lines[0]) {
		return true
	}
	if len(lines) > 1 && titleExpr.MatchString(lines[1]) {
		return true
	}
	// A short first line over real content reads as a heading.
	first := strings.TrimSpace(lines[0])
	return len(lines) > 1 && first != "" && len([]rune(first)) <= 30
}
