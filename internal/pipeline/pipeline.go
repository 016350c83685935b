// Package pipeline runs the full ingestion batch: discover issues, recognize
// and correct their pages, segment, extract metadata, chunk, embed, and
// persist. Issues are processed strictly sequentially; one issue finishes
// completely before the next begins.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dwyoon/churchscan/internal/chunk"
	"github.com/dwyoon/churchscan/internal/correct"
	"github.com/dwyoon/churchscan/internal/discovery"
	"github.com/dwyoon/churchscan/internal/embed"
	"github.com/dwyoon/churchscan/internal/metadata"
	"github.com/dwyoon/churchscan/internal/newsletter"
	"github.com/dwyoon/churchscan/internal/recognize"
	"github.com/dwyoon/churchscan/internal/store"
	"github.com/dwyoon/churchscan/internal/ttlcache"
)

// IssueSource produces issue descriptors for a scan range.
type IssueSource interface {
	Scan(ctx context.Context, r discovery.Range) ([]*newsletter.Issue, error)
}

// ImageFetcher downloads one page image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// Mode selects how a run treats already-persisted issues.
type Mode string

const (
	// ModeIncremental skips every known issue and scans only above the
	// highest cached number.
	ModeIncremental Mode = "incremental"
	// ModeFull deletes non-completed cached issues first and rescans the
	// whole range.
	ModeFull Mode = "full"
)

// Options configures one batch run.
type Options struct {
	Mode   Mode
	Kind   newsletter.SourceKind
	Range  discovery.Range
	Verify bool

	// CallTimeout bounds each external round trip.
	CallTimeout time.Duration

	// Stop is polled between issues; when it returns true the run drains
	// the current issue and halts.
	Stop func() bool

	Progress ProgressFunc
}

// correctionData is the TTL-cached corrections dictionary and roster.
type correctionData struct {
	rules  []correct.Rule
	roster *correct.Roster
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	store       *store.Store
	source      IssueSource
	fetcher     ImageFetcher
	engine      *recognize.Engine
	extractor   *metadata.Extractor
	embedder    embed.Embedder
	corrections *ttlcache.Cache[correctionData]
	logger      *slog.Logger
}

// New creates a pipeline. cacheTTL bounds corrections/roster staleness.
func New(
	st *store.Store,
	source IssueSource,
	fetcher ImageFetcher,
	engine *recognize.Engine,
	extractor *metadata.Extractor,
	embedder embed.Embedder,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:     st,
		source:    source,
		fetcher:   fetcher,
		engine:    engine,
		extractor: extractor,
		embedder:  embedder,
		logger:    logger,
	}
	p.corrections = ttlcache.New(cacheTTL, func(ctx context.Context) (correctionData, error) {
		rules, err := st.CorrectionRules(ctx)
		if err != nil {
			return correctionData{}, err
		}
		roster, err := st.Roster(ctx)
		if err != nil {
			return correctionData{}, err
		}
		return correctionData{rules: rules, roster: roster}, nil
	})
	return p
}

// Run executes one batch.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 30 * time.Second
	}
	summary := &Summary{}

	issues, err := p.discover(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.emit(opts, Event{Step: "discovery", Percent: 0,
		Detail: fmt.Sprintf("%d issues to process", len(issues))})

	quotaExhausted := false
	for i, issue := range issues {
		if opts.Stop != nil && opts.Stop() {
			summary.Stopped = true
			summary.Remaining = len(issues) - i
			p.emit(opts, Event{Step: "stopped", Percent: percent(i, len(issues)),
				Detail: fmt.Sprintf("%d issues remaining", summary.Remaining)})
			break
		}
		if err := ctx.Err(); err != nil {
			summary.Remaining = len(issues) - i
			return summary, err
		}

		err := p.processIssue(ctx, issue, opts, &quotaExhausted)
		switch {
		case err == nil:
			summary.Processed++
		case errors.Is(err, errSkipped):
			summary.Skipped++
		default:
			summary.recordFailure(fmt.Sprintf("issue %d: %v", issue.IssueNo, err))
			p.logger.Error("issue failed", "issue_no", issue.IssueNo, "error", err)
		}
		p.emit(opts, Event{Step: "issue", Percent: percent(i+1, len(issues)),
			IssueNo: issue.IssueNo,
			Detail:  fmt.Sprintf("issue %d done (%d/%d)", issue.IssueNo, i+1, len(issues))})
	}

	summary.QuotaExhausted = quotaExhausted
	return summary, nil
}

// errSkipped marks an issue that required no work this run.
var errSkipped = errors.New("issue skipped")

// discover merges persisted issues with a fresh listing scan per the mode.
func (p *Pipeline) discover(ctx context.Context, opts Options) ([]*newsletter.Issue, error) {
	scanRange := opts.Range

	if opts.Mode == ModeFull {
		deleted, err := p.store.DeleteNonCompleted(ctx, opts.Kind, scanRange.Lower, scanRange.Upper)
		if err != nil {
			return nil, fmt.Errorf("full rescan cleanup failed: %w", err)
		}
		if deleted > 0 {
			p.logger.Info("removed non-completed issues for full rescan", "count", deleted)
		}
	} else {
		highest, err := p.store.HighestIssueNo(ctx, opts.Kind)
		if err != nil {
			return nil, err
		}
		if highest+1 > scanRange.Lower {
			scanRange.Lower = highest + 1
		}
	}

	scanned, err := p.source.Scan(ctx, scanRange)
	if err != nil {
		return nil, fmt.Errorf("listing scan failed: %w", err)
	}

	// Merge: scanned issues plus persisted ones that never completed.
	byNo := make(map[int]*newsletter.Issue, len(scanned))
	for _, issue := range scanned {
		byNo[issue.IssueNo] = issue
	}
	persisted, err := p.store.ListIssues(ctx, opts.Kind)
	if err != nil {
		return nil, err
	}
	for _, issue := range persisted {
		if issue.Status == newsletter.StatusCompleted {
			continue
		}
		if opts.Range.Lower > 0 && issue.IssueNo < opts.Range.Lower {
			continue
		}
		if opts.Range.Upper > 0 && issue.IssueNo > opts.Range.Upper {
			continue
		}
		if _, ok := byNo[issue.IssueNo]; !ok {
			byNo[issue.IssueNo] = issue
		}
	}

	issues := make([]*newsletter.Issue, 0, len(byNo))
	for _, issue := range byNo {
		issues = append(issues, issue)
	}
	sortIssuesDesc(issues)
	return issues, nil
}

// processIssue runs one issue end to end. The issue is marked completed
// only when every page's segments embedded and persisted cleanly.
func (p *Pipeline) processIssue(ctx context.Context, issue *newsletter.Issue, opts Options, quotaExhausted *bool) error {
	existing, err := p.store.GetIssue(ctx, issue.IssueNo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	reprocess := existing != nil && existing.Status == newsletter.StatusCompleted
	if reprocess && opts.Mode != ModeFull {
		// Completed issues are immutable to incremental runs.
		return errSkipped
	}

	if err := p.store.UpsertIssue(ctx, issue); err != nil {
		return err
	}
	if reprocess {
		// Full rescans force completed issues back through the stages;
		// the content hash still short-circuits unchanged pages.
		err = p.store.ReopenIssue(ctx, issue.IssueNo)
	} else {
		err = p.store.SetIssueStatus(ctx, issue.IssueNo, newsletter.StatusProcessing)
	}
	if err != nil {
		return err
	}

	pages, pageErrs := p.recognizePages(ctx, issue, opts)
	if len(pages) == 0 && pageErrs > 0 {
		p.failIssue(ctx, issue.IssueNo)
		return fmt.Errorf("all %d pages failed", pageErrs)
	}

	p.resolveContinuations(ctx, issue, pages, opts)

	embedErrs := 0
	for _, page := range pages {
		if page.skipped {
			continue
		}
		if err := p.persistPage(ctx, issue, page, opts, quotaExhausted); err != nil {
			if errors.Is(err, embed.ErrQuotaExhausted) {
				// Quota is fatal for the rest of the run; the issue
				// stays short of completed.
				p.failIssue(ctx, issue.IssueNo)
				return err
			}
			embedErrs++
			p.logger.Error("page persistence failed",
				"issue_no", issue.IssueNo,
				"page_no", page.pageNo,
				"error", err)
		}
	}

	if pageErrs > 0 || embedErrs > 0 {
		p.failIssue(ctx, issue.IssueNo)
		return fmt.Errorf("%d page(s) failed, %d embed/persist failure(s)", pageErrs, embedErrs)
	}
	return p.store.SetIssueStatus(ctx, issue.IssueNo, newsletter.StatusCompleted)
}

func (p *Pipeline) failIssue(ctx context.Context, issueNo int) {
	if err := p.store.SetIssueStatus(ctx, issueNo, newsletter.StatusFailed); err != nil {
		p.logger.Warn("failed to mark issue failed", "issue_no", issueNo, "error", err)
	}
}

// pageWork carries one page through the stages.
type pageWork struct {
	pageNo   int
	imageURL string
	image    []byte
	hash     string
	result   *recognize.PageResult
	segments []*newsletter.Segment
	skipped  bool // unchanged content hash
}

// recognizePages fetches and recognizes every page of the issue, returning
// the successful pages and the count of failed ones. A single page failure
// never aborts the issue's other pages.
func (p *Pipeline) recognizePages(ctx context.Context, issue *newsletter.Issue, opts Options) ([]*pageWork, int) {
	var pages []*pageWork
	failures := 0

	for i, imageURL := range issue.PageURLs {
		pageNo := i + 1
		page, err := p.recognizePage(ctx, issue, pageNo, imageURL, opts)
		if err != nil {
			failures++
			p.logger.Warn("page failed",
				"issue_no", issue.IssueNo,
				"page_no", pageNo,
				"error", err)
			continue
		}
		pages = append(pages, page)
		p.emit(opts, Event{Step: "page", IssueNo: issue.IssueNo,
			Percent: percent(pageNo, len(issue.PageURLs)),
			Detail:  fmt.Sprintf("issue %d page %d/%d", issue.IssueNo, pageNo, len(issue.PageURLs))})
	}
	return pages, failures
}

func (p *Pipeline) recognizePage(ctx context.Context, issue *newsletter.Issue, pageNo int, imageURL string, opts Options) (*pageWork, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	image, err := p.fetcher.FetchImage(fetchCtx, imageURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}

	sum := sha256.Sum256(image)
	hash := hex.EncodeToString(sum[:])

	unchanged, err := p.store.PageUnchanged(ctx, issue.IssueNo, pageNo, hash)
	if err != nil {
		return nil, err
	}
	if unchanged {
		// Identical bytes; skip the provider call entirely.
		return &pageWork{pageNo: pageNo, imageURL: imageURL, hash: hash, skipped: true}, nil
	}

	recCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	result, err := p.engine.RecognizePage(recCtx, image)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}

	if opts.Verify {
		verCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
		result, err = p.engine.Verify(verCtx, image, result)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("verification: %w", err)
		}
	}

	page := &pageWork{
		pageNo:   pageNo,
		imageURL: imageURL,
		image:    image,
		hash:     hash,
		result:   result,
	}
	page.segments = p.segmentPage(ctx, issue, page)
	return page, nil
}

// segmentPage corrects the recognized text and splits it into segments.
// Structured results arrive pre-segmented; free text goes through the
// delimiter-based splitter.
func (p *Pipeline) segmentPage(ctx context.Context, issue *newsletter.Issue, page *pageWork) []*newsletter.Segment {
	corrector := p.corrector(ctx)

	var segments []*newsletter.Segment
	if page.result.Kind == recognize.KindStructured {
		for i, sec := range page.result.Document.Sections {
			res := corrector.Correct(sec.Content)
			p.logCorrections(issue.IssueNo, page.pageNo, res)
			segments = append(segments, &newsletter.Segment{
				ID:      uuid.New().String(),
				Index:   i,
				Title:   sec.Title,
				Body:    res.Text,
				Type:    sec.Type,
				Speaker: sec.Author,
			})
		}
		return segments
	}

	res := corrector.Correct(page.result.Text)
	p.logCorrections(issue.IssueNo, page.pageNo, res)
	for i, body := range segmentBodies(res.Text) {
		segments = append(segments, &newsletter.Segment{
			ID:    uuid.New().String(),
			Index: i,
			Body:  body,
		})
	}
	return segments
}

func (p *Pipeline) corrector(ctx context.Context) *correct.Corrector {
	data, err := p.corrections.Get(ctx)
	if err != nil {
		p.logger.Warn("corrections dictionary unavailable, using static rules only", "error", err)
		return correct.New(nil, nil)
	}
	return correct.New(data.rules, data.roster)
}

func (p *Pipeline) logCorrections(issueNo, pageNo int, res correct.Result) {
	for _, h := range res.Hallucinations {
		p.logger.Warn("suspected hallucination",
			"issue_no", issueNo, "page_no", pageNo,
			"token", h.Token, "position", h.Position, "reason", h.Reason)
	}
	for _, w := range res.Warnings {
		p.logger.Warn("implausible value",
			"issue_no", issueNo, "page_no", pageNo,
			"kind", w.Kind, "value", w.Value)
	}
	if len(res.Applied) > 0 {
		p.logger.Debug("corrections applied",
			"issue_no", issueNo, "page_no", pageNo,
			"count", len(res.Applied), "confidence", res.Confidence)
	}
}

// persistPage writes the page row, its segments, and per-segment metadata,
// chunks, and embeddings.
func (p *Pipeline) persistPage(ctx context.Context, issue *newsletter.Issue, page *pageWork, opts Options, quotaExhausted *bool) error {
	if err := p.store.UpsertPage(ctx, &newsletter.Page{
		IssueNo:     issue.IssueNo,
		PageNo:      page.pageNo,
		ImageURL:    page.imageURL,
		ContentHash: page.hash,
		Text:        page.result.Body(),
		Provider:    page.result.Provider,
	}); err != nil {
		return err
	}

	// Enrich segments before persisting them.
	for _, seg := range page.segments {
		p.enrichSegment(ctx, seg, opts)
	}
	if err := p.store.ReplaceSegments(ctx, issue.IssueNo, page.pageNo, page.segments); err != nil {
		return err
	}

	for _, seg := range page.segments {
		if err := p.embedSegment(ctx, issue, page, seg, opts, quotaExhausted); err != nil {
			return err
		}
		p.emit(opts, Event{Step: "segment", IssueNo: issue.IssueNo,
			Detail: fmt.Sprintf("issue %d page %d segment %d embedded", issue.IssueNo, page.pageNo, seg.Index)})
	}
	return nil
}

// enrichSegment fills metadata via one structured-output call. Extraction
// never fails hard; worst case the segment keeps a placeholder title.
func (p *Pipeline) enrichSegment(ctx context.Context, seg *newsletter.Segment, opts Options) {
	mdCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	md := p.extractor.Extract(mdCtx, seg.Body)
	cancel()

	if seg.Title == "" {
		seg.Title = md.Title
	}
	if seg.Type == "" {
		seg.Type = md.Type
	}
	if seg.Speaker == "" {
		seg.Speaker = md.Speaker
	}
	seg.EventName = md.EventName
	seg.EventDate = md.EventDate
	seg.ScriptureRefs = md.ScriptureRefs
	seg.Keywords = md.Keywords
}

// embedSegment chunks the segment body, embeds all chunks in one batch,
// and persists them. Nothing is saved when the batch fails, so a segment
// never ends up with partial chunks.
func (p *Pipeline) embedSegment(ctx context.Context, issue *newsletter.Issue, page *pageWork, seg *newsletter.Segment, opts Options, quotaExhausted *bool) error {
	texts := chunk.Split(seg.Body)
	if len(texts) == 0 {
		if len([]rune(seg.Body)) == 0 {
			return nil
		}
		// Bodies under the chunk floor still get one chunk; a short
		// notice must stay retrievable.
		texts = []string{seg.Body}
	}

	if *quotaExhausted {
		return fmt.Errorf("segment %s: %w", seg.ID, embed.ErrQuotaExhausted)
	}

	embCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	vectors, err := p.embedder.EmbedBatch(embCtx, texts)
	cancel()
	if err != nil {
		if errors.Is(err, embed.ErrQuotaExhausted) {
			*quotaExhausted = true
		}
		return fmt.Errorf("segment %s: %w", seg.ID, err)
	}

	chunks := make([]*newsletter.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &newsletter.Chunk{
			ID:           uuid.New().String(),
			SegmentID:    seg.ID,
			Index:        i,
			Text:         text,
			IssueNo:      issue.IssueNo,
			PageNo:       page.pageNo,
			SegmentTitle: seg.Title,
			SourceKind:   issue.SourceKind,
			Embedding:    vectors[i],
		}
	}
	return p.store.SaveChunks(ctx, chunks)
}

func (p *Pipeline) emit(opts Options, ev Event) {
	if opts.Progress != nil {
		opts.Progress(ev)
	}
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}

func sortIssuesDesc(issues []*newsletter.Issue) {
	sort.Slice(issues, func(i, j int) bool { return issues[i].IssueNo > issues[j].IssueNo })
}
