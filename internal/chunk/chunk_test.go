package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitShortInput(t *testing.T) {
	t.Run("below floor yields zero chunks", func(t *testing.T) {
		got := Split("짧은 글.")
		if len(got) != 0 {
			t.Errorf("Split() = %d chunks, want 0", len(got))
		}
	})

	t.Run("at or under target yields one chunk", func(t *testing.T) {
		text := strings.Repeat("가나다라 마바사아 자차카타 파하 문장. ", 10)
		got := Split(text)
		if len(got) != 1 {
			t.Fatalf("Split() = %d chunks, want 1", len(got))
		}
		if got[0] != strings.TrimSpace(text) {
			t.Error("single chunk should be the whole trimmed input")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := Split(""); len(got) != 0 {
			t.Errorf("Split(\"\") = %d chunks, want 0", len(got))
		}
	})
}

func TestSplitLongInput(t *testing.T) {
	// ~40 runes per sentence, 30 sentences: ~1200 runes.
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("오늘 예배는 본당에서 드리며 모든 성도님들의 참여를 부탁드립니다. ")
	}
	text := b.String()

	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	t.Run("every chunk at least the floor", func(t *testing.T) {
		for i, c := range chunks {
			if n := len([]rune(c)); n < DefaultMinSize {
				t.Errorf("chunk %d has %d runes, below floor %d", i, n, DefaultMinSize)
			}
		}
	})

	t.Run("chunks cut at sentence boundaries", func(t *testing.T) {
		for i, c := range chunks[:len(chunks)-1] {
			if !strings.HasSuffix(strings.TrimRight(c, " "), ".") {
				t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c[len(c)-20:])
			}
		}
	})

	t.Run("adjacent chunks overlap", func(t *testing.T) {
		for i := 1; i < len(chunks); i++ {
			if overlapLen(chunks[i-1], chunks[i]) == 0 {
				t.Errorf("chunks %d and %d share no overlap", i-1, i)
			}
		}
	})
}

// Overlap-stripped concatenation must reconstruct the input.
func TestSplitReconstruction(t *testing.T) {
	// Every line is unique so overlap detection between adjacent chunks
	// cannot lock onto a repeated period of the text.
	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "%d월 %d일 소식을 전해드립니다. 제%d호에는 새로운 행사가 %d건 준비되어 있습니다.\n", i%12+1, i+1, 400+i, i+3)
	}
	text := strings.TrimSpace(b.String())

	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	rebuilt := chunks[0]
	for i := 1; i < len(chunks); i++ {
		k := overlapLen(chunks[i-1], chunks[i])
		rebuilt += string([]rune(chunks[i])[k:])
	}

	if rebuilt != text {
		t.Errorf("reconstruction mismatch:\n got %d runes\nwant %d runes", len([]rune(rebuilt)), len([]rune(text)))
	}
}

// No sentence punctuation, no spaces: the splitter must still terminate
// and make forward progress on every step.
func TestSplitNoBoundaries(t *testing.T) {
	text := strings.Repeat("가", 3000)
	chunks := Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	total := 0
	for _, c := range chunks {
		total += len([]rune(c))
	}
	if total < 3000 {
		t.Errorf("chunks cover %d runes, want at least 3000", total)
	}
}

func TestSplitSubFloorTail(t *testing.T) {
	// With the default overlap (100) the leftover tail is always at least
	// the overlap size, so a sub-floor tail needs overlap < floor. The
	// input length is chosen so the final remainder is 45 runes.
	opts := Options{TargetSize: 100, Overlap: 20, MinSize: 50}
	text := strings.Repeat("word ", 809)

	chunks := SplitWithOptions(text, opts)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last, "word") {
		t.Error("sub-floor tail should be appended to the last chunk, not dropped")
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n < opts.MinSize {
			t.Errorf("chunk %d has %d runes, below floor %d", i, n, opts.MinSize)
		}
	}
}

func TestSplitSubFloorMergeKeepsNoDuplicateOverlap(t *testing.T) {
	// 105 runes with the only boundary at index 95: the first window cuts
	// at 96, the 19-rune tail starts at 86 (overlap 10) and is under the
	// floor, so it folds into the first chunk. The fold must contribute
	// only the runes past the cut; re-appending from the tail's start
	// would duplicate the 10 shared overlap runes.
	opts := Options{TargetSize: 100, Overlap: 10, MinSize: 40}
	text := strings.Repeat("가", 94) + "다." + strings.Repeat("나", 9)

	chunks := SplitWithOptions(text, opts)
	if len(chunks) != 1 {
		t.Fatalf("SplitWithOptions() = %d chunks, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("merged chunk is not the input: %d runes, want %d",
			len([]rune(chunks[0])), len([]rune(text)))
	}
}

func TestSplitWithOptions(t *testing.T) {
	t.Run("custom sizes", func(t *testing.T) {
		text := strings.Repeat("short sentence here. ", 40)
		chunks := SplitWithOptions(text, Options{TargetSize: 100, Overlap: 20, MinSize: 10})
		if len(chunks) < 5 {
			t.Fatalf("expected at least 5 chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if n := len([]rune(c)); n > 120 {
				t.Errorf("chunk %d has %d runes, far above target", i, n)
			}
		}
	})

	t.Run("overlap larger than target is clamped", func(t *testing.T) {
		text := strings.Repeat("가나다 라마바 사아자. ", 100)
		chunks := SplitWithOptions(text, Options{TargetSize: 100, Overlap: 200, MinSize: 10})
		if len(chunks) == 0 {
			t.Fatal("expected chunks despite pathological overlap")
		}
	})
}

func TestBoundaryPriority(t *testing.T) {
	tests := []struct {
		name   string
		window string
		suffix string // expected content just before the cut
	}{
		{
			name:   "korean ending preferred over bare period",
			window: pad("x.", 320) + "meeting at 9. 예배를 드립니다. trailing text here without end",
			suffix: "드립니다.",
		},
		{
			name:   "plain punctuation when no korean ending",
			window: pad("x", 350) + " value is 3.14 done? more trailing text with no period",
			suffix: "done?",
		},
		{
			name:   "paragraph break over line break",
			window: pad("x", 340) + "\nline one\n\npara two with more text and no punctuation at all",
			suffix: "\n\n",
		},
		{
			name:   "space as last resort",
			window: pad("x", 380) + " finalword",
			suffix: " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runes := []rune(tt.window)
			if len(runes) < DefaultTargetSize {
				runes = append(runes, []rune(pad("y", DefaultTargetSize-len(runes)))...)
			}
			runes = runes[:DefaultTargetSize]
			cut := findBoundary(runes)
			if cut <= 0 || cut > len(runes) {
				t.Fatalf("cut = %d out of range", cut)
			}
			head := string(runes[:cut])
			if !strings.HasSuffix(head, tt.suffix) {
				t.Errorf("cut before %q, want cut after %q", tail(head, 15), tt.suffix)
			}
		})
	}
}

func pad(s string, n int) string {
	return strings.Repeat(s, n/len([]rune(s)))
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// overlapLen returns the longest k such that the last k runes of a equal
// the first k runes of b.
func overlapLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	max := len(ra)
	if len(rb) < max {
		max = len(rb)
	}
	for k := max; k > 0; k-- {
		if string(ra[len(ra)-k:]) == string(rb[:k]) {
			return k
		}
	}
	return 0
}
