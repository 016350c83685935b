package segment

import (
	"fmt"
	"strings"
	"testing"
)

func longBody(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n*3; i++ {
		fmt.Fprintf(&b, "이번 주 공동체 소식 %d번을 전해드립니다. ", i)
	}
	return b.String()
}

func TestSplitPageHeaderConvention(t *testing.T) {
	t.Run("N headers yield N segments", func(t *testing.T) {
		text := "### 기사 하나\n" + longBody(250) + "\n### 기사 둘\n" + longBody(250) + "\n### 기사 셋\n" + longBody(250)
		got := SplitPage(text)
		if len(got) != 3 {
			t.Fatalf("SplitPage() = %d segments, want 3", len(got))
		}
		if !strings.HasPrefix(got[0], "기사 하나") {
			t.Errorf("segment 0 = %q...", got[0][:30])
		}
		if !strings.HasPrefix(got[2], "기사 셋") {
			t.Errorf("segment 2 = %q...", got[2][:30])
		}
	})

	t.Run("short titled articles are kept standalone", func(t *testing.T) {
		text := "### 기사 1\n제목: A\n내용: 한 문장.\n\n### 기사 2\n제목: B\n내용: 또 한 문장."
		got := SplitPage(text)
		if len(got) != 2 {
			t.Fatalf("SplitPage() = %d segments, want 2: %v", len(got), got)
		}
		if !strings.Contains(got[0], "제목: A") {
			t.Errorf("segment 0 missing title A: %q", got[0])
		}
		if !strings.Contains(got[1], "제목: B") {
			t.Errorf("segment 1 missing title B: %q", got[1])
		}
	})

	t.Run("preamble joins first segment", func(t *testing.T) {
		text := "머리말 한 줄\n### 본문\n" + longBody(250)
		got := SplitPage(text)
		if len(got) != 1 {
			t.Fatalf("SplitPage() = %d segments, want 1", len(got))
		}
		if !strings.HasPrefix(got[0], "머리말 한 줄") {
			t.Error("preamble should lead the first segment")
		}
	})
}

func TestSplitPageSeparatorConvention(t *testing.T) {
	text := longBody(250) + "\n----\n" + longBody(250) + "\n====\n" + longBody(250)
	got := SplitPage(text)
	if len(got) != 3 {
		t.Fatalf("SplitPage() = %d segments, want 3", len(got))
	}
	for i, s := range got {
		if strings.Contains(s, "----") || strings.Contains(s, "====") {
			t.Errorf("segment %d retains separator line", i)
		}
	}
}

func TestSplitPageCounterConvention(t *testing.T) {
	text := "[1] " + longBody(250) + "\n[2] " + longBody(250)
	got := SplitPage(text)
	if len(got) != 2 {
		t.Fatalf("SplitPage() = %d segments, want 2", len(got))
	}
	if strings.HasPrefix(got[0], "[1]") {
		t.Error("counter marker should be stripped from the body")
	}
}

func TestSplitPageConventionPriority(t *testing.T) {
	// Headers and separators both present: headers win.
	text := "### 첫째\n" + longBody(250) + "\n----\n더 많은 내용입니다.\n### 둘째\n" + longBody(250)
	got := SplitPage(text)
	if len(got) != 2 {
		t.Fatalf("SplitPage() = %d segments, want 2 (header convention)", len(got))
	}
}

func TestSplitPageNoDelimiters(t *testing.T) {
	t.Run("long text becomes one segment", func(t *testing.T) {
		text := longBody(300)
		got := SplitPage(text)
		if len(got) != 1 {
			t.Fatalf("SplitPage() = %d segments, want 1", len(got))
		}
	})

	t.Run("below minimum length yields zero segments", func(t *testing.T) {
		got := SplitPage("짧은 조각 텍스트.")
		if len(got) != 0 {
			t.Fatalf("SplitPage() = %d segments, want 0", len(got))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := SplitPage("  \n "); len(got) != 0 {
			t.Errorf("SplitPage() = %d segments, want 0", len(got))
		}
	})
}

func TestMergeUndersized(t *testing.T) {
	// An untitled splinter between two articles folds into the one before it.
	text := longBody(250) + "\n----\n안내 한 줄\n----\n" + longBody(250)
	got := SplitPage(text)
	if len(got) != 2 {
		t.Fatalf("SplitPage() = %d segments, want 2: splinter should merge", len(got))
	}
	if !strings.Contains(got[0], "안내 한 줄") {
		t.Error("splinter content must merge into preceding segment, not vanish")
	}
}

func TestEndsWithContinuationMarker(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"본문이 이어집니다 (계속)", true},
		{"본문이 이어집니다 (다음 면에 계속)", true},
		{"문장이 끝났습니다.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := EndsWithContinuationMarker(tt.body); got != tt.want {
			t.Errorf("EndsWithContinuationMarker(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestIsContinuation(t *testing.T) {
	t.Run("explicit marker", func(t *testing.T) {
		if !IsContinuation("기사 본문입니다 (계속)", "이어지는 내용입니다.") {
			t.Error("explicit marker should flag continuation")
		}
	})

	t.Run("open sentence plus titleless head", func(t *testing.T) {
		prev := "지난 주일에 있었던 행사에 대해 말씀드리면 그날 많은 성도들이"
		next := "함께 모여 서로의 근황을 나누고 음식을 나누며 오랜 시간 동안 교제하는 귀한"
		if !IsContinuation(prev, next) {
			t.Error("open sentence + titleless opening should flag continuation")
		}
	})

	t.Run("closed sentence with titled next", func(t *testing.T) {
		prev := "지난 행사는 잘 마무리되었습니다."
		next := "제목: 새로운 소식\n이번 주에는 새 가족을 환영합니다."
		if IsContinuation(prev, next) {
			t.Error("complete segment boundary should not flag continuation")
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if IsContinuation("", "본문") || IsContinuation("본문", "") {
			t.Error("empty side should never flag continuation")
		}
	})
}

func TestMergeContinuation(t *testing.T) {
	merged := MergeContinuation("앞 면의 본문", "뒷 면의 이어지는 본문")
	if !strings.Contains(merged, JoinMarker) {
		t.Error("merged body must carry the join marker")
	}
	if !strings.HasPrefix(merged, "앞 면의 본문") || !strings.HasSuffix(merged, "뒷 면의 이어지는 본문") {
		t.Errorf("merged = %q", merged)
	}
}
