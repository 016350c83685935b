package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/dwyoon/churchscan/internal/newsletter"
)

// IssueRecord is one published edition. The natural key is the issue
// number; the surrogate ID exists only for gorm bookkeeping.
type IssueRecord struct {
	ID         uint `gorm:"primaryKey"`
	IssueNo    int  `gorm:"uniqueIndex;not null"`
	Date       time.Time
	Year       int
	Month      int
	PageCount  int
	SourceKind string
	Status     string `gorm:"index"`
	PageURLs   datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (IssueRecord) TableName() string { return "issues" }

// PageRecord is one recognized page image. (issue_no, page_no) is unique;
// the content hash short-circuits recognition for unchanged bytes.
type PageRecord struct {
	ID          uint `gorm:"primaryKey"`
	IssueNo     int  `gorm:"uniqueIndex:idx_issue_page;not null"`
	PageNo      int  `gorm:"uniqueIndex:idx_issue_page;not null"`
	ImageURL    string
	ContentHash string `gorm:"index"`
	Text        string
	Provider    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PageRecord) TableName() string { return "pages" }

// SegmentRecord is one recognized unit within a page. Segments are
// replaced wholesale when a page is reprocessed, never updated in place.
type SegmentRecord struct {
	ID                string `gorm:"primaryKey"`
	IssueNo           int    `gorm:"uniqueIndex:idx_issue_page_seg;not null"`
	PageNo            int    `gorm:"uniqueIndex:idx_issue_page_seg;not null"`
	Idx               int    `gorm:"uniqueIndex:idx_issue_page_seg;column:idx;not null"`
	Title             string
	Body              string
	Type              string
	Speaker           string
	EventName         string
	EventDate         string
	ScriptureRefs     datatypes.JSON
	Keywords          datatypes.JSON
	ContinuesFromPrev bool
	ContinuesToNext   bool
	CreatedAt         time.Time
}

func (SegmentRecord) TableName() string { return "segments" }

// ChunkRecord is the atomic retrieval unit. Issue and segment metadata is
// denormalized so the retriever reads one row per hit.
type ChunkRecord struct {
	ID           string `gorm:"primaryKey"`
	SegmentID    string `gorm:"uniqueIndex:idx_segment_chunk;not null"`
	Idx          int    `gorm:"uniqueIndex:idx_segment_chunk;column:idx;not null"`
	Text         string
	IssueNo      int `gorm:"index"`
	PageNo       int
	SegmentTitle string
	SourceKind   string
	Embedding    datatypes.JSON
	CreatedAt    time.Time
}

func (ChunkRecord) TableName() string { return "chunks" }

// CorrectionRecord is one admin-curated substitution rule. The pipeline
// only reads these; editing happens out of band.
type CorrectionRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Wrong      string `gorm:"uniqueIndex;not null"`
	Correct    string `gorm:"not null"`
	Category   string
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CorrectionRecord) TableName() string { return "corrections" }

// RosterRecord is one known proper noun: a person with a position, or a
// place name.
type RosterRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Position  string
	Kind      string // "person" or "place"
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RosterRecord) TableName() string { return "roster_entries" }

// toJSON marshals v, falling back to JSON null. The inputs here are
// slices of strings/floats, which cannot fail to marshal.
func toJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(b)
}

func fromJSONStrings(raw datatypes.JSON) []string {
	var out []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func fromJSONFloats(raw datatypes.JSON) []float32 {
	var out []float32
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

// newIssueRecord converts a domain issue for persistence.
func newIssueRecord(issue *newsletter.Issue) *IssueRecord {
	return &IssueRecord{
		IssueNo:    issue.IssueNo,
		Date:       issue.Date,
		Year:       issue.Year,
		Month:      issue.Month,
		PageCount:  issue.PageCount,
		SourceKind: string(issue.SourceKind),
		Status:     string(issue.Status),
		PageURLs:   toJSON(issue.PageURLs),
	}
}

// Issue converts the record back to the domain type.
func (r *IssueRecord) Issue() *newsletter.Issue {
	return &newsletter.Issue{
		IssueNo:    r.IssueNo,
		Date:       r.Date,
		Year:       r.Year,
		Month:      r.Month,
		PageCount:  r.PageCount,
		SourceKind: newsletter.SourceKind(r.SourceKind),
		Status:     newsletter.IssueStatus(r.Status),
		PageURLs:   fromJSONStrings(r.PageURLs),
	}
}

// Segment converts the record back to the domain type.
func (r *SegmentRecord) Segment() *newsletter.Segment {
	return &newsletter.Segment{
		ID:                r.ID,
		Index:             r.Idx,
		Title:             r.Title,
		Body:              r.Body,
		Type:              r.Type,
		Speaker:           r.Speaker,
		EventName:         r.EventName,
		EventDate:         r.EventDate,
		ScriptureRefs:     fromJSONStrings(r.ScriptureRefs),
		Keywords:          fromJSONStrings(r.Keywords),
		ContinuesFromPrev: r.ContinuesFromPrev,
		ContinuesToNext:   r.ContinuesToNext,
	}
}

// Chunk converts the record back to the domain type.
func (r *ChunkRecord) Chunk() *newsletter.Chunk {
	return &newsletter.Chunk{
		ID:           r.ID,
		SegmentID:    r.SegmentID,
		Index:        r.Idx,
		Text:         r.Text,
		IssueNo:      r.IssueNo,
		PageNo:       r.PageNo,
		SegmentTitle: r.SegmentTitle,
		SourceKind:   newsletter.SourceKind(r.SourceKind),
		Embedding:    fromJSONFloats(r.Embedding),
	}
}
