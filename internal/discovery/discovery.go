// Package discovery scans the publication listing site and produces issue
// descriptors with page image URLs. The listing markup has changed several
// times over the years, so candidate links are matched against a prioritized
// list of pattern families rather than one fixed selector.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"

	"github.com/dwyoon/churchscan/internal/newsletter"
)

// Pattern is one listing-link convention. Selector narrows the anchors to
// inspect; NumberExpr pulls the issue number out of the href or link text
// (first capture group).
type Pattern struct {
	Name       string
	Selector   string
	NumberExpr *regexp.Regexp
}

// DefaultPatterns covers the markup generations seen on the listing site,
// most recent first.
var DefaultPatterns = []Pattern{
	{
		Name:       "query-param",
		Selector:   "a[href*='issue_no=']",
		NumberExpr: regexp.MustCompile(`issue_no=(\d+)`),
	},
	{
		Name:       "path-number",
		Selector:   "a[href*='/issue/']",
		NumberExpr: regexp.MustCompile(`/issue/(\d+)`),
	},
	{
		Name:       "link-text",
		Selector:   "a",
		NumberExpr: regexp.MustCompile(`제\s?(\d+)\s?호`),
	},
}

// Config holds discovery configuration.
type Config struct {
	ListingURL string
	SourceKind newsletter.SourceKind
	Patterns   []Pattern
	Timeout    time.Duration
	MaxPages   int // listing pagination cap
	Retries    uint
}

// Scanner walks the paginated listing.
type Scanner struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	// Most recently exploded PDF, keyed by URL. The pipeline fetches an
	// issue's pages in order, so one entry avoids re-downloading the PDF
	// for every page.
	pdfMu    sync.Mutex
	pdfURL   string
	pdfPages [][]byte
}

// NewScanner creates a listing scanner.
func NewScanner(cfg Config, logger *slog.Logger) *Scanner {
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 50
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Range bounds a scan by issue number. Zero values mean unbounded.
type Range struct {
	Lower int
	Upper int
}

// ResolveRange turns two boundary URLs into a numeric range, normalized so
// the larger number is the upper bound regardless of argument order.
func ResolveRange(urlA, urlB string, patterns []Pattern) (Range, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	a, err := numberFromURL(urlA, patterns)
	if err != nil {
		return Range{}, fmt.Errorf("boundary %q: %w", urlA, err)
	}
	b, err := numberFromURL(urlB, patterns)
	if err != nil {
		return Range{}, fmt.Errorf("boundary %q: %w", urlB, err)
	}
	if a > b {
		a, b = b, a
	}
	return Range{Lower: a, Upper: b}, nil
}

func numberFromURL(raw string, patterns []Pattern) (int, error) {
	for _, p := range patterns {
		if m := p.NumberExpr.FindStringSubmatch(raw); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	return 0, fmt.Errorf("no issue number recognized")
}

// Scan walks the listing and returns a deduplicated, descending-by-number
// list of issues within the range. A failure fetching one issue's detail
// page truncates that issue's pages, never the whole scan.
func (s *Scanner) Scan(ctx context.Context, r Range) ([]*newsletter.Issue, error) {
	found := make(map[int]*newsletter.Issue)

	for page := 1; page <= s.cfg.MaxPages; page++ {
		doc, err := s.fetchDocument(ctx, s.listingPageURL(page))
		if err != nil {
			// A listing fetch failure ends pagination; what we have
			// so far still comes back.
			s.logger.Warn("listing fetch failed, stopping pagination",
				"page", page,
				"error", err)
			break
		}

		links := s.extractLinks(doc)
		if len(links) == 0 {
			break
		}

		belowLower := false
		for _, link := range links {
			if r.Upper > 0 && link.issueNo > r.Upper {
				continue
			}
			if r.Lower > 0 && link.issueNo < r.Lower {
				belowLower = true
				continue
			}
			if _, seen := found[link.issueNo]; seen {
				continue
			}
			found[link.issueNo] = s.describeIssue(ctx, link)
		}
		if belowLower {
			break
		}
	}

	issues := make([]*newsletter.Issue, 0, len(found))
	for _, issue := range found {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].IssueNo > issues[j].IssueNo })
	return issues, nil
}

type candidateLink struct {
	issueNo   int
	detailURL string
}

// extractLinks tries each pattern family in priority order and keeps the
// first that yields at least one candidate.
func (s *Scanner) extractLinks(doc *goquery.Document) []candidateLink {
	for _, p := range s.cfg.Patterns {
		var links []candidateLink
		doc.Find(p.Selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			m := p.NumberExpr.FindStringSubmatch(href)
			if m == nil {
				m = p.NumberExpr.FindStringSubmatch(sel.Text())
			}
			if m == nil {
				return
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				return
			}
			links = append(links, candidateLink{issueNo: n, detailURL: s.absoluteURL(href)})
		})
		if len(links) > 0 {
			s.logger.Debug("pattern matched", "pattern", p.Name, "links", len(links))
			return links
		}
	}
	return nil
}

// describeIssue builds the issue descriptor, fetching the detail page for
// page image URLs. Detail failure yields an issue with no pages rather
// than an error.
func (s *Scanner) describeIssue(ctx context.Context, link candidateLink) *newsletter.Issue {
	year, month, err := newsletter.DateForIssueNo(link.issueNo)
	issue := &newsletter.Issue{
		IssueNo:    link.issueNo,
		SourceKind: s.cfg.SourceKind,
		Status:     newsletter.StatusPending,
	}
	if err == nil {
		issue.Year = year
		issue.Month = month
		issue.Date = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}

	urls, err := s.pageImageURLs(ctx, link.detailURL)
	if err != nil {
		s.logger.Warn("detail page fetch failed, issue kept without pages",
			"issue_no", link.issueNo,
			"url", link.detailURL,
			"error", err)
		return issue
	}
	issue.PageURLs = urls
	issue.PageCount = len(urls)
	return issue
}

var imageExtExpr = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)$`)

// pageImageURLs extracts the scan images from a detail page, in document
// order.
func (s *Scanner) pageImageURLs(ctx context.Context, detailURL string) ([]string, error) {
	doc, err := s.fetchDocument(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || !imageExtExpr.MatchString(src) {
			return
		}
		abs := s.absoluteURL(src)
		if seen[abs] {
			return
		}
		seen[abs] = true
		urls = append(urls, abs)
	})
	if len(urls) > 0 {
		return urls, nil
	}

	// Recent bulletins link one scanned PDF instead of per-page images.
	var pdfURL string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || !IsPDF(href) {
			return true
		}
		pdfURL = s.absoluteURL(href)
		return false
	})
	if pdfURL == "" {
		return nil, nil
	}
	return s.pdfPageURLs(ctx, pdfURL)
}

// pdfPageURLs explodes a linked PDF and returns one addressable URL per
// page, page count taken from the PDF itself.
func (s *Scanner) pdfPageURLs(ctx context.Context, pdfURL string) ([]string, error) {
	pages, err := s.explodePDF(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(pages))
	for i := range pages {
		urls[i] = pdfPageURL(pdfURL, i+1)
	}
	return urls, nil
}

// explodePDF downloads a PDF and extracts its page images, caching the
// result for the follow-up per-page fetches.
func (s *Scanner) explodePDF(ctx context.Context, pdfURL string) ([][]byte, error) {
	s.pdfMu.Lock()
	defer s.pdfMu.Unlock()
	if s.pdfURL == pdfURL {
		return s.pdfPages, nil
	}

	data, err := fetchBytes(ctx, s.client, pdfURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PDF %s: %w", pdfURL, err)
	}
	tmp, err := os.CreateTemp("", "churchscan-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	pages, err := PDFPages(tmp.Name())
	if err != nil {
		return nil, err
	}
	s.pdfURL = pdfURL
	s.pdfPages = pages
	return pages, nil
}

// FetchImage downloads one page image with retries. URLs addressing a page
// inside a PDF are served from the exploded document instead.
func (s *Scanner) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if base, pageNo, ok := parsePDFPageURL(imageURL); ok {
		pages, err := s.explodePDF(ctx, base)
		if err != nil {
			return nil, err
		}
		if pageNo < 1 || pageNo > len(pages) {
			return nil, fmt.Errorf("PDF %s has no page %d", base, pageNo)
		}
		return pages[pageNo-1], nil
	}

	var data []byte
	err := retry.Do(
		func() error {
			b, err := fetchBytes(ctx, s.client, imageURL)
			if err != nil {
				return err
			}
			data = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.Retries),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image %s: %w", imageURL, err)
	}
	return data, nil
}

func (s *Scanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", "churchscan/1.0")

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("listing returned %s", resp.Status)
			}
			d, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.Retries),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Scanner) listingPageURL(page int) string {
	u, err := url.Parse(s.cfg.ListingURL)
	if err != nil {
		return s.cfg.ListingURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Scanner) absoluteURL(href string) string {
	base, err := url.Parse(s.cfg.ListingURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
