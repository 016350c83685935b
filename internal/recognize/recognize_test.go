package recognize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dwyoon/churchscan/internal/providers"
)

func newTestRegistry(clients ...*providers.MockClient) *providers.Registry {
	r := providers.NewRegistry()
	for _, c := range clients {
		r.Register(c.Name(), c)
	}
	return r
}

func TestEngine_RecognizePage(t *testing.T) {
	t.Run("first provider wins", func(t *testing.T) {
		first := &providers.MockClient{ClientName: "first", ResponseText: "페이지 본문"}
		second := &providers.MockClient{ClientName: "second", ResponseText: "never used"}

		engine := NewEngine(newTestRegistry(first, second), Options{}, nil)
		result, err := engine.RecognizePage(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("RecognizePage() error = %v", err)
		}
		if result.Provider != "first" {
			t.Errorf("provider = %q, want first", result.Provider)
		}
		if result.Body() != "페이지 본문" {
			t.Errorf("body = %q", result.Body())
		}
		if second.RequestCount() != 0 {
			t.Errorf("second provider called %d times, want 0", second.RequestCount())
		}
	})

	t.Run("fallback on failure, each provider once", func(t *testing.T) {
		first := &providers.MockClient{ClientName: "first", ShouldFail: true}
		second := &providers.MockClient{ClientName: "second", ResponseText: "복구된 본문"}

		engine := NewEngine(newTestRegistry(first, second), Options{}, nil)
		result, err := engine.RecognizePage(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("RecognizePage() error = %v", err)
		}
		if result.Provider != "second" {
			t.Errorf("provider = %q, want second", result.Provider)
		}
		if first.RequestCount() != 1 {
			t.Errorf("first provider called %d times, want 1", first.RequestCount())
		}
	})

	t.Run("all providers fail", func(t *testing.T) {
		first := &providers.MockClient{ClientName: "first", ShouldFail: true}
		second := &providers.MockClient{ClientName: "second", ShouldFail: true}

		engine := NewEngine(newTestRegistry(first, second), Options{}, nil)
		if _, err := engine.RecognizePage(context.Background(), []byte("img")); err == nil {
			t.Fatal("expected error when all providers fail")
		}
		if first.RequestCount() != 1 || second.RequestCount() != 1 {
			t.Errorf("call counts = %d/%d, want 1/1", first.RequestCount(), second.RequestCount())
		}
	})

	t.Run("structured document preferred", func(t *testing.T) {
		doc := json.RawMessage(`{
			"name": "제456호 주보",
			"sections": [
				{"type": "sermon", "title": "오늘의 말씀", "content": "본문 내용입니다."}
			]
		}`)
		client := &providers.MockClient{ClientName: "structured", ResponseJSON: doc}

		engine := NewEngine(newTestRegistry(client), Options{Structured: true}, nil)
		result, err := engine.RecognizePage(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("RecognizePage() error = %v", err)
		}
		if result.Kind != KindStructured {
			t.Fatalf("kind = %q, want structured", result.Kind)
		}
		if len(result.Document.Sections) != 1 || result.Document.Sections[0].Title != "오늘의 말씀" {
			t.Errorf("document = %+v", result.Document)
		}
	})

	t.Run("unparseable structured output falls back to text", func(t *testing.T) {
		client := &providers.MockClient{ClientName: "flaky", ResponseText: "그냥 텍스트 전사 결과"}

		engine := NewEngine(newTestRegistry(client), Options{Structured: true}, nil)
		result, err := engine.RecognizePage(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("RecognizePage() error = %v", err)
		}
		if result.Kind != KindText {
			t.Errorf("kind = %q, want text", result.Kind)
		}
	})

	t.Run("no providers configured", func(t *testing.T) {
		engine := NewEngine(providers.NewRegistry(), Options{}, nil)
		if _, err := engine.RecognizePage(context.Background(), []byte("img")); err == nil {
			t.Fatal("expected error with empty registry")
		}
	})
}

func TestEngine_Verify(t *testing.T) {
	t.Run("skipped with single provider", func(t *testing.T) {
		only := &providers.MockClient{ClientName: "only", ResponseText: "x"}
		engine := NewEngine(newTestRegistry(only), Options{}, nil)

		first := &PageResult{Kind: KindText, Text: "1차 전사", Provider: "only"}
		result, err := engine.Verify(context.Background(), []byte("img"), first)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result != first {
			t.Error("expected first pass returned unchanged")
		}
		if only.RequestCount() != 0 {
			t.Errorf("provider called %d times, want 0", only.RequestCount())
		}
	})

	t.Run("uses a different provider", func(t *testing.T) {
		a := &providers.MockClient{ClientName: "a", ResponseText: "a의 결과"}
		b := &providers.MockClient{ClientName: "b", ResponseText: "수정된 전사"}
		engine := NewEngine(newTestRegistry(a, b), Options{}, nil)

		first := &PageResult{Kind: KindText, Text: "1차 전사", Provider: "a"}
		result, err := engine.Verify(context.Background(), []byte("img"), first)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.Provider != "b" {
			t.Errorf("reviewer = %q, want b", result.Provider)
		}
		if !result.Verified {
			t.Error("expected Verified flag")
		}
		if result.Text != "수정된 전사" {
			t.Errorf("text = %q", result.Text)
		}
	})

	t.Run("reviewer failure keeps first pass", func(t *testing.T) {
		a := &providers.MockClient{ClientName: "a", ResponseText: "x"}
		b := &providers.MockClient{ClientName: "b", ShouldFail: true}
		engine := NewEngine(newTestRegistry(a, b), Options{}, nil)

		first := &PageResult{Kind: KindText, Text: "1차 전사", Provider: "a"}
		result, err := engine.Verify(context.Background(), []byte("img"), first)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result != first {
			t.Error("expected first pass on reviewer failure")
		}
	})
}

func TestEngine_CheckContinuation(t *testing.T) {
	verdict := json.RawMessage(`{"continues": true, "reason": "다음 페이지가 문장 중간에서 시작"}`)
	client := &providers.MockClient{ClientName: "judge", ResponseJSON: verdict}

	engine := NewEngine(newTestRegistry(client), Options{}, nil)
	check, err := engine.CheckContinuation(context.Background(), []byte("p1"), []byte("p2"))
	if err != nil {
		t.Fatalf("CheckContinuation() error = %v", err)
	}
	if !check.Continues {
		t.Error("expected continues = true")
	}
	if check.Reason == "" {
		t.Error("expected a reason")
	}
}

func TestParseDocument(t *testing.T) {
	t.Run("rejects empty sections", func(t *testing.T) {
		if _, err := ParseDocument(json.RawMessage(`{"name":"x","sections":[]}`)); err == nil {
			t.Error("expected error for no sections")
		}
	})

	t.Run("rejects whitespace-only content", func(t *testing.T) {
		raw := json.RawMessage(`{"name":"x","sections":[{"type":"notice","title":"t","content":"  "}]}`)
		if _, err := ParseDocument(raw); err == nil {
			t.Error("expected error for blank content")
		}
	})

	t.Run("plain text flattening", func(t *testing.T) {
		raw := json.RawMessage(`{
			"name": "주보",
			"sections": [
				{"type": "sermon", "title": "말씀", "content": "본문 하나."},
				{"type": "notice", "title": "", "content": "공지 내용."}
			],
			"advertisements": ["광고 문구"]
		}`)
		doc, err := ParseDocument(raw)
		if err != nil {
			t.Fatalf("ParseDocument() error = %v", err)
		}
		want := "말씀\n본문 하나.\n\n공지 내용.\n\n광고 문구"
		if got := doc.PlainText(); got != want {
			t.Errorf("PlainText() = %q, want %q", got, want)
		}
	})
}
