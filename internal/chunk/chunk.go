// Package chunk splits recognized text into overlapping, retrieval-sized
// pieces. It is pure: no network calls, no stores, no clocks. Splitting is
// rune-based so Korean text never breaks mid-character.
package chunk

import "strings"

// Default splitting parameters. Sizes are in runes.
const (
	DefaultTargetSize = 500
	DefaultOverlap    = 100
	DefaultMinSize    = 50

	// The boundary search scans backward through the last 40% of a window;
	// cutting earlier than 60% in would make chunks too uneven.
	boundaryWindowRatio = 0.6
)

// Options tunes the splitter. Zero values fall back to the defaults.
type Options struct {
	TargetSize int // desired chunk length
	Overlap    int // runes shared between adjacent chunks
	MinSize    int // floor below which fragments merge into a neighbor
}

func (o Options) withDefaults() Options {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.MinSize <= 0 {
		o.MinSize = DefaultMinSize
	}
	if o.Overlap >= o.TargetSize {
		o.Overlap = o.TargetSize / 5
	}
	return o
}

// Split divides text into chunks using the default options.
func Split(text string) []string {
	return SplitWithOptions(text, Options{})
}

// SplitWithOptions divides text into overlapping chunks, cutting at the best
// available sentence or whitespace boundary within each window. Input at or
// under the target size is returned whole; input under the floor yields no
// chunks at all.
func SplitWithOptions(text string, opts Options) []string {
	o := opts.withDefaults()

	runes := []rune(strings.TrimSpace(text))
	if len(runes) < o.MinSize {
		return nil
	}
	if len(runes) <= o.TargetSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	// prevCut is where the previous chunk's text ends; a piece folded into
	// that chunk must contribute only the runes beyond it, or the shared
	// overlap would appear twice inside one chunk.
	prevCut := 0
	for len(runes)-start > o.TargetSize {
		window := runes[start : start+o.TargetSize]
		cut := start + findBoundary(window)

		piece := runes[start:cut]
		if len(piece) < o.MinSize && len(chunks) > 0 {
			// Never emit a splinter; fold it into the previous chunk.
			if cut > prevCut {
				chunks[len(chunks)-1] += string(runes[prevCut:cut])
				prevCut = cut
			}
		} else {
			chunks = append(chunks, string(piece))
			prevCut = cut
		}

		next := cut - o.Overlap
		if next <= start {
			// Forward-progress floor: a large overlap must never stall the
			// scan, so drop the overlap for this step instead of looping.
			next = cut
		}
		start = next
	}

	tail := runes[start:]
	if len(tail) >= o.MinSize || len(chunks) == 0 {
		chunks = append(chunks, string(tail))
	} else if len(runes) > prevCut {
		chunks[len(chunks)-1] += string(runes[prevCut:])
	}

	return chunks
}

// findBoundary returns the cut position (exclusive) within a full-size
// window, searching backward from the window end through its last 40%.
// Boundary priority: Korean sentence ending followed by final punctuation,
// then any sentence punctuation, then a paragraph break, then a line break,
// then the nearest space. With no boundary at all, the window end is used.
func findBoundary(window []rune) int {
	from := int(float64(len(window)) * boundaryWindowRatio)

	if cut := lastSentenceEnd(window, from, true); cut > 0 {
		return cut
	}
	if cut := lastSentenceEnd(window, from, false); cut > 0 {
		return cut
	}
	if cut := lastBreak(window, from, true); cut > 0 {
		return cut
	}
	if cut := lastBreak(window, from, false); cut > 0 {
		return cut
	}
	for i := len(window) - 1; i >= from; i-- {
		if window[i] == ' ' || window[i] == '\t' {
			return i + 1
		}
	}
	return len(window)
}

// koreanEndings are the final syllables of common Korean sentence-closing
// verb forms ("-다", "-요", "-까", "-죠", "-오", "-네").
var koreanEndings = map[rune]bool{
	'다': true, '요': true, '까': true, '죠': true, '오': true, '네': true,
}

func isSentencePunct(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// lastSentenceEnd finds the last sentence-final punctuation at or after
// from. When requireEnding is set, the punctuation must directly follow a
// Korean sentence-ending syllable.
func lastSentenceEnd(window []rune, from int, requireEnding bool) int {
	for i := len(window) - 1; i >= from; i-- {
		if !isSentencePunct(window[i]) {
			continue
		}
		if requireEnding && (i == 0 || !koreanEndings[window[i-1]]) {
			continue
		}
		return i + 1
	}
	return 0
}

// lastBreak finds the last paragraph break (blank line) or, when paragraph
// is false, the last single newline at or after from.
func lastBreak(window []rune, from int, paragraph bool) int {
	for i := len(window) - 1; i >= from; i-- {
		if window[i] != '\n' {
			continue
		}
		if paragraph && (i == 0 || window[i-1] != '\n') {
			continue
		}
		return i + 1
	}
	return 0
}
