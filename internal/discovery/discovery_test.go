package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dwyoon/churchscan/internal/newsletter"
)

func TestResolveRange(t *testing.T) {
	t.Run("normalizes reversed boundaries", func(t *testing.T) {
		r, err := ResolveRange(
			"https://example.org/list?issue_no=460",
			"https://example.org/list?issue_no=450",
			nil,
		)
		if err != nil {
			t.Fatalf("ResolveRange() error = %v", err)
		}
		if r.Lower != 450 || r.Upper != 460 {
			t.Errorf("range = %+v, want 450..460", r)
		}
	})

	t.Run("mixed pattern families", func(t *testing.T) {
		r, err := ResolveRange(
			"https://example.org/issue/455",
			"https://example.org/list?issue_no=450",
			nil,
		)
		if err != nil {
			t.Fatalf("ResolveRange() error = %v", err)
		}
		if r.Lower != 450 || r.Upper != 455 {
			t.Errorf("range = %+v, want 450..455", r)
		}
	})

	t.Run("unrecognizable boundary", func(t *testing.T) {
		if _, err := ResolveRange("https://example.org/about", "https://example.org/issue/455", nil); err == nil {
			t.Error("expected error for URL without issue number")
		}
	})
}

// listingServer serves one listing page plus detail pages with images.
func listingServer(t *testing.T, listingHTML map[int]string, detailHTML map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/list" {
			page := r.URL.Query().Get("page")
			var n int
			fmt.Sscanf(page, "%d", &n)
			if html, ok := listingHTML[n]; ok {
				fmt.Fprint(w, html)
				return
			}
			fmt.Fprint(w, "<html><body>no more</body></html>")
			return
		}
		if html, ok := detailHTML[r.URL.Path]; ok {
			fmt.Fprint(w, html)
			return
		}
		http.NotFound(w, r)
	}))
}

func TestScanner_Scan(t *testing.T) {
	t.Run("dedup and descending order", func(t *testing.T) {
		server := listingServer(t,
			map[int]string{
				1: `<html><body>
					<a href="/detail/455?issue_no=455">제455호</a>
					<a href="/detail/456?issue_no=456">제456호</a>
					<a href="/detail/455?issue_no=455">제455호 (중복)</a>
				</body></html>`,
			},
			map[string]string{
				"/detail/455": `<html><img src="/img/455-1.jpg"><img src="/img/455-2.jpg"></html>`,
				"/detail/456": `<html><img src="/img/456-1.jpg"></html>`,
			},
		)
		defer server.Close()

		s := NewScanner(Config{
			ListingURL: server.URL + "/list",
			SourceKind: newsletter.SourceNewsletter,
			Retries:    1,
		}, nil)

		issues, err := s.Scan(context.Background(), Range{})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(issues) != 2 {
			t.Fatalf("got %d issues, want 2", len(issues))
		}
		if issues[0].IssueNo != 456 || issues[1].IssueNo != 455 {
			t.Errorf("order = %d, %d; want 456, 455", issues[0].IssueNo, issues[1].IssueNo)
		}
		if issues[1].PageCount != 2 {
			t.Errorf("issue 455 page count = %d, want 2", issues[1].PageCount)
		}
		// Issue number implies the publication month.
		if issues[0].Year == 0 || issues[0].Month == 0 {
			t.Errorf("issue 456 missing derived date: %d-%d", issues[0].Year, issues[0].Month)
		}
	})

	t.Run("stops below lower bound", func(t *testing.T) {
		server := listingServer(t,
			map[int]string{
				1: `<html><a href="/detail/456?issue_no=456">x</a><a href="/detail/440?issue_no=440">y</a></html>`,
				2: `<html><a href="/detail/430?issue_no=430">z</a></html>`,
			},
			map[string]string{
				"/detail/456": `<html><img src="/img/1.jpg"></html>`,
			},
		)
		defer server.Close()

		s := NewScanner(Config{
			ListingURL: server.URL + "/list",
			SourceKind: newsletter.SourceNewsletter,
			Retries:    1,
		}, nil)

		issues, err := s.Scan(context.Background(), Range{Lower: 450})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(issues) != 1 || issues[0].IssueNo != 456 {
			t.Fatalf("issues = %+v, want only 456", issues)
		}
	})

	t.Run("upper bound filters", func(t *testing.T) {
		server := listingServer(t,
			map[int]string{
				1: `<html><a href="/detail/456?issue_no=456">x</a><a href="/detail/455?issue_no=455">y</a></html>`,
			},
			map[string]string{
				"/detail/455": `<html><img src="/img/1.jpg"></html>`,
			},
		)
		defer server.Close()

		s := NewScanner(Config{
			ListingURL: server.URL + "/list",
			SourceKind: newsletter.SourceNewsletter,
			Retries:    1,
		}, nil)

		issues, err := s.Scan(context.Background(), Range{Upper: 455})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(issues) != 1 || issues[0].IssueNo != 455 {
			t.Fatalf("issues = %+v, want only 455", issues)
		}
	})

	t.Run("detail failure keeps issue without pages", func(t *testing.T) {
		server := listingServer(t,
			map[int]string{
				1: `<html><a href="/detail/456?issue_no=456">x</a></html>`,
			},
			map[string]string{}, // detail 404s
		)
		defer server.Close()

		s := NewScanner(Config{
			ListingURL: server.URL + "/list",
			SourceKind: newsletter.SourceNewsletter,
			Retries:    1,
		}, nil)

		issues, err := s.Scan(context.Background(), Range{})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(issues) != 1 {
			t.Fatalf("got %d issues, want 1", len(issues))
		}
		if issues[0].PageCount != 0 {
			t.Errorf("page count = %d, want 0", issues[0].PageCount)
		}
	})

	t.Run("pattern priority picks first matching family", func(t *testing.T) {
		// Links match both query-param and link-text families; the
		// query-param numbers must win.
		server := listingServer(t,
			map[int]string{
				1: `<html><a href="/detail/456?issue_no=456">제999호</a></html>`,
			},
			map[string]string{
				"/detail/456": `<html><img src="/img/1.jpg"></html>`,
			},
		)
		defer server.Close()

		s := NewScanner(Config{
			ListingURL: server.URL + "/list",
			SourceKind: newsletter.SourceNewsletter,
			Retries:    1,
		}, nil)

		issues, err := s.Scan(context.Background(), Range{})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(issues) != 1 || issues[0].IssueNo != 456 {
			t.Fatalf("issues = %+v, want 456 from query-param family", issues)
		}
	})
}

func TestScanner_FetchImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	s := NewScanner(Config{ListingURL: server.URL, Retries: 1}, nil)
	data, err := s.FetchImage(context.Background(), server.URL+"/img.jpg")
	if err != nil {
		t.Fatalf("FetchImage() error = %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://example.org/bulletin/456.pdf", true},
		{"https://example.org/bulletin/456.PDF?download=1", true},
		{"https://example.org/bulletin/456.jpg", false},
		{"bulletin.pdf", true},
	}
	for _, tt := range tests {
		if got := IsPDF(tt.ref); got != tt.want {
			t.Errorf("IsPDF(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestPDFPageURLRoundTrip(t *testing.T) {
	ref := pdfPageURL("https://example.org/bulletin/456.pdf", 3)
	base, page, ok := parsePDFPageURL(ref)
	if !ok {
		t.Fatalf("parsePDFPageURL(%q) not recognized", ref)
	}
	if base != "https://example.org/bulletin/456.pdf" || page != 3 {
		t.Errorf("parsePDFPageURL(%q) = %q, %d", ref, base, page)
	}

	for _, bad := range []string{
		"https://example.org/img.jpg#page=2", // not a PDF
		"https://example.org/456.pdf",        // no fragment
		"https://example.org/456.pdf#page=0", // pages start at 1
	} {
		if _, _, ok := parsePDFPageURL(bad); ok {
			t.Errorf("parsePDFPageURL(%q) unexpectedly ok", bad)
		}
	}
}
