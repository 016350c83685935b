// Package correct repairs recognition errors in transcribed text. It is
// pure and deterministic: an ordered regex substitution table, fuzzy
// proper-noun validation against a curated roster, and plausibility checks
// on numbers. It never calls the network and running it twice over its own
// output applies nothing further.
package correct

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule is one substitution in the ordered correction table.
type Rule struct {
	Pattern    *regexp.Regexp
	Replace    string
	Category   string
	Confidence float64
}

// Applied records one substitution that actually matched.
type Applied struct {
	From     string
	To       string
	Category string
}

// Warning flags a finding that is surfaced but never blocks persistence.
type Warning struct {
	Kind    string // "implausible_month", "implausible_day", "implausible_attendance"
	Value   string
	Message string
}

// Hallucination marks a name the roster could not validate.
type Hallucination struct {
	Token      string
	Position   string
	Reason     string   // "unknown_name" or "ambiguous_match"
	Candidates []string // equally close roster entries, for ambiguous_match
}

// Result is the outcome of one correction pass.
type Result struct {
	Text           string
	Applied        []Applied
	Warnings       []Warning
	Hallucinations []Hallucination
	Confidence     float64
}

// Roster is the curated list of known names plus the honorific position
// words that mark a name in running text.
type Roster struct {
	names     []string
	nameSet   map[string]bool
	positions []string
}

// NewRoster builds a roster from known names and position words. When
// positions is empty the default honorific set is used.
func NewRoster(names, positions []string) *Roster {
	if len(positions) == 0 {
		positions = defaultPositions
	}
	// Longest-first so "부목사" wins over "목사" in the adjacency pattern.
	sorted := make([]string, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &Roster{names: names, nameSet: set, positions: sorted}
}

// HasName reports whether the roster contains the exact name.
func (r *Roster) HasName(name string) bool {
	return r.nameSet[name]
}

// Corrector applies the substitution table and roster validation.
type Corrector struct {
	rules       []Rule
	roster      *Roster
	namePattern *regexp.Regexp
}

// New creates a corrector. The static rule table always runs first;
// persisted rules from the corrections dictionary follow in order.
func New(rules []Rule, roster *Roster) *Corrector {
	all := make([]Rule, 0, len(staticRules)+len(rules))
	all = append(all, staticRules...)
	all = append(all, rules...)

	if roster == nil {
		roster = NewRoster(nil, nil)
	}

	// A 2-4 syllable Hangul token directly followed by a position word.
	pattern := fmt.Sprintf(`([가-힣]{2,4})\s?(%s)`, strings.Join(escapeAll(roster.positions), "|"))

	return &Corrector{
		rules:       all,
		roster:      roster,
		namePattern: regexp.MustCompile(pattern),
	}
}

// Correct runs one full pass over text.
func (c *Corrector) Correct(text string) Result {
	res := Result{Text: text}

	res.Text, res.Applied = c.applyRules(res.Text)
	res.Text, res.Applied, res.Hallucinations = c.validateNames(res.Text, res.Applied)
	res.Warnings = checkPlausibility(res.Text)
	res.Confidence = confidence(res)

	return res
}

// applyRules runs the ordered substitution table, recording each match.
func (c *Corrector) applyRules(text string) (string, []Applied) {
	var applied []Applied
	for _, rule := range c.rules {
		matches := rule.Pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		replaced := rule.Pattern.ReplaceAllString(text, rule.Replace)
		if replaced == text {
			continue
		}
		for _, m := range matches {
			to := rule.Pattern.ReplaceAllString(m, rule.Replace)
			if to == m {
				continue
			}
			applied = append(applied, Applied{From: m, To: to, Category: rule.Category})
		}
		text = replaced
	}
	return text, applied
}

// validateNames finds name+honorific adjacencies and checks each name
// against the roster: exact match passes, a unique roster entry within
// edit distance 2 substitutes, no match flags a suspected hallucination,
// and a tie between equally close entries is flagged but never resolved.
func (c *Corrector) validateNames(text string, applied []Applied) (string, []Applied, []Hallucination) {
	var hallucinations []Hallucination
	if len(c.roster.names) == 0 {
		return text, applied, nil
	}

	out := c.namePattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := c.namePattern.FindStringSubmatch(match)
		name, position := sub[1], sub[2]

		if c.roster.nameSet[name] {
			return match
		}

		best, candidates := c.roster.closest(name)
		switch {
		case best > maxNameDistance:
			hallucinations = append(hallucinations, Hallucination{
				Token:    name,
				Position: position,
				Reason:   "unknown_name",
			})
			return match
		case len(candidates) > 1:
			// Equally close roster entries: flag, don't guess.
			hallucinations = append(hallucinations, Hallucination{
				Token:      name,
				Position:   position,
				Reason:     "ambiguous_match",
				Candidates: candidates,
			})
			return match
		default:
			applied = append(applied, Applied{From: name, To: candidates[0], Category: "roster"})
			return strings.Replace(match, name, candidates[0], 1)
		}
	})

	return out, applied, hallucinations
}

// maxNameDistance is the edit-distance threshold for roster repair.
const maxNameDistance = 2

// closest returns the minimum edit distance to any roster name and every
// name at that distance.
func (r *Roster) closest(name string) (int, []string) {
	best := maxNameDistance + 1
	var candidates []string
	for _, known := range r.names {
		d := levenshtein(name, known)
		switch {
		case d < best:
			best = d
			candidates = []string{known}
		case d == best:
			candidates = append(candidates, known)
		}
	}
	return best, candidates
}

// levenshtein computes rune-level edit distance.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Issue weights for the confidence score. Hallucinations weigh most: they
// mean the provider likely invented content.
const (
	weightApplied       = 1.0
	weightWarning       = 3.0
	weightHallucination = 10.0
)

func confidence(res Result) float64 {
	n := len([]rune(res.Text))
	if n == 0 {
		return 0
	}
	weighted := weightApplied*float64(len(res.Applied)) +
		weightWarning*float64(len(res.Warnings)) +
		weightHallucination*float64(len(res.Hallucinations))

	conf := 1.0 - weighted/float64(n)
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func escapeAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}
