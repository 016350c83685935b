package pipeline

import (
	"context"

	"github.com/dwyoon/churchscan/internal/newsletter"
	"github.com/dwyoon/churchscan/internal/segment"
)

// segmentBodies splits free text into segment bodies.
func segmentBodies(text string) []string {
	return segment.SplitPage(text)
}

// resolveContinuations merges articles that run across page boundaries.
// Text heuristics decide first; when they are silent and both page images
// are at hand, a two-image provider check gets the final word. A merged
// continuation is folded into the previous page's last segment and its
// standalone segment discarded.
func (p *Pipeline) resolveContinuations(ctx context.Context, issue *newsletter.Issue, pages []*pageWork, opts Options) {
	for i := 1; i < len(pages); i++ {
		prev, curr := pages[i-1], pages[i]
		if prev.skipped || curr.skipped {
			continue
		}
		if len(prev.segments) == 0 || len(curr.segments) == 0 {
			continue
		}

		last := prev.segments[len(prev.segments)-1]
		first := curr.segments[0]
		if first.Title != "" {
			// A titled opening is a new article, full stop.
			continue
		}

		continues := segment.IsContinuation(last.Body, first.Body)
		if !continues && prev.image != nil && curr.image != nil {
			checkCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
			check, err := p.engine.CheckContinuation(checkCtx, prev.image, curr.image)
			cancel()
			if err != nil {
				p.logger.Debug("continuation check failed, keeping heuristic verdict",
					"issue_no", issue.IssueNo,
					"page_no", curr.pageNo,
					"error", err)
			} else if check.Continues {
				continues = true
			}
		}
		if !continues {
			continue
		}

		last.Body = segment.MergeContinuation(last.Body, first.Body)
		last.ContinuesToNext = true

		// Discard the continuation's standalone segment and close the
		// index gap.
		curr.segments = curr.segments[1:]
		for j, seg := range curr.segments {
			seg.Index = j
		}
		p.logger.Debug("merged cross-page continuation",
			"issue_no", issue.IssueNo,
			"from_page", prev.pageNo,
			"into_page", curr.pageNo)
	}
}
