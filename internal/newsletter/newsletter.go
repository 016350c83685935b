// Package newsletter defines the domain model for scanned church
// publications: issues, pages, segments, and retrieval chunks.
package newsletter

import "time"

// SourceKind identifies which publication an issue belongs to.
type SourceKind string

const (
	SourceNewsletter SourceKind = "newsletter" // monthly church newsletter
	SourceBulletin   SourceKind = "bulletin"   // weekly order-of-service bulletin
)

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusProcessing IssueStatus = "processing"
	StatusCompleted  IssueStatus = "completed"
	StatusFailed     IssueStatus = "failed"
)

// CanTransition reports whether the status machine allows moving from s to next.
// Allowed: pending -> processing -> completed, and processing -> failed.
// A failed issue may be picked up again (failed -> processing).
func (s IssueStatus) CanTransition(next IssueStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	default:
		return false
	}
}

// Issue is one published edition. IssueNo is the cross-source dedup key:
// it is a pure function of (year, month), so the same edition discovered
// through different listings always maps to the same Issue.
type Issue struct {
	IssueNo    int
	Date       time.Time
	Year       int
	Month      int
	PageCount  int
	SourceKind SourceKind
	Status     IssueStatus
	PageURLs   []string
}

// Page is one recognized image within an issue.
type Page struct {
	IssueNo     int
	PageNo      int
	ImageURL    string
	ContentHash string
	Text        string
	Provider    string
}

// Segment is a titled, contiguous unit of recognized text within a page.
type Segment struct {
	ID                string
	Index             int
	Title             string
	Body              string
	Type              string
	Speaker           string
	EventName         string
	EventDate         string
	ScriptureRefs     []string
	Keywords          []string
	ContinuesFromPrev bool
	ContinuesToNext   bool
}

// Chunk is a bounded, overlapping slice of a segment body. It carries
// denormalized issue/page metadata so the retriever never needs a join.
type Chunk struct {
	ID           string
	SegmentID    string
	Index        int
	Text         string
	IssueNo      int
	PageNo       int
	SegmentTitle string
	SourceKind   SourceKind
	Embedding    []float32
}
