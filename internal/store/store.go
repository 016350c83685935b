// Package store persists the issue/page/segment/chunk hierarchy with
// natural-key upserts and replace-on-reprocess semantics, so re-running a
// scan never duplicates rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/dwyoon/churchscan/internal/newsletter"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the database with the pipeline's persistence operations.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps an open gorm handle. Tests pass a sqlite handle here; the CLI
// uses OpenPostgres.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// OpenPostgres connects to Postgres and returns a ready Store.
func OpenPostgres(dsn string, logger *slog.Logger) (*Store, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db, logger), nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&IssueRecord{},
		&PageRecord{},
		&SegmentRecord{},
		&ChunkRecord{},
		&CorrectionRecord{},
		&RosterRecord{},
	)
}

// UpsertIssue inserts or updates an issue by its number. Status is not
// touched on update; the state machine owns it via SetIssueStatus.
func (s *Store) UpsertIssue(ctx context.Context, issue *newsletter.Issue) error {
	rec := newIssueRecord(issue)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "issue_no"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"date", "year", "month", "page_count", "source_kind", "page_urls", "updated_at",
		}),
	}).Create(rec).Error
}

// GetIssue fetches one issue by number.
func (s *Store) GetIssue(ctx context.Context, issueNo int) (*newsletter.Issue, error) {
	var rec IssueRecord
	err := s.db.WithContext(ctx).Where("issue_no = ?", issueNo).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Issue(), nil
}

// ListIssues returns all issues for a source kind, descending by number.
func (s *Store) ListIssues(ctx context.Context, kind newsletter.SourceKind) ([]*newsletter.Issue, error) {
	var recs []IssueRecord
	if err := s.db.WithContext(ctx).
		Where("source_kind = ?", string(kind)).
		Order("issue_no DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	issues := make([]*newsletter.Issue, len(recs))
	for i := range recs {
		issues[i] = recs[i].Issue()
	}
	return issues, nil
}

// HighestIssueNo returns the largest known issue number for a source kind,
// or 0 when none are stored. Incremental scans only look above this.
func (s *Store) HighestIssueNo(ctx context.Context, kind newsletter.SourceKind) (int, error) {
	var max *int
	err := s.db.WithContext(ctx).
		Model(&IssueRecord{}).
		Where("source_kind = ?", string(kind)).
		Select("MAX(issue_no)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// SetIssueStatus moves an issue through its lifecycle, rejecting
// transitions the state machine does not allow.
func (s *Store) SetIssueStatus(ctx context.Context, issueNo int, next newsletter.IssueStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec IssueRecord
		if err := tx.Where("issue_no = ?", issueNo).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		current := newsletter.IssueStatus(rec.Status)
		if !current.CanTransition(next) {
			return fmt.Errorf("issue %d: illegal status transition %s -> %s", issueNo, current, next)
		}
		return tx.Model(&IssueRecord{}).
			Where("issue_no = ?", issueNo).
			Update("status", string(next)).Error
	})
}

// ReopenIssue forces a completed issue back to processing. This is the
// forced full-reprocess path; everything else goes through SetIssueStatus
// and its state machine, which treats completed as terminal.
func (s *Store) ReopenIssue(ctx context.Context, issueNo int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec IssueRecord
		if err := tx.Where("issue_no = ?", issueNo).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if newsletter.IssueStatus(rec.Status) != newsletter.StatusCompleted {
			return fmt.Errorf("issue %d: cannot reopen from status %s", issueNo, rec.Status)
		}
		return tx.Model(&IssueRecord{}).
			Where("issue_no = ?", issueNo).
			Update("status", string(newsletter.StatusProcessing)).Error
	})
}

// DeleteNonCompleted removes issues for a source kind that never reached
// completed, together with their pages, segments, and chunks. Full rescans
// call this first so partial runs leave no debris. Non-zero lower/upper
// bound the cleanup by issue number, so a rescan targeting one issue never
// touches unrelated pending or failed work.
func (s *Store) DeleteNonCompleted(ctx context.Context, kind newsletter.SourceKind, lower, upper int) (int, error) {
	var deleted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&IssueRecord{}).
			Where("source_kind = ? AND status <> ?", string(kind), string(newsletter.StatusCompleted))
		if lower > 0 {
			q = q.Where("issue_no >= ?", lower)
		}
		if upper > 0 {
			q = q.Where("issue_no <= ?", upper)
		}
		var nos []int
		if err := q.Pluck("issue_no", &nos).Error; err != nil {
			return err
		}
		if len(nos) == 0 {
			return nil
		}
		for _, tbl := range []any{&ChunkRecord{}, &SegmentRecord{}, &PageRecord{}, &IssueRecord{}} {
			if err := tx.Where("issue_no IN ?", nos).Delete(tbl).Error; err != nil {
				return err
			}
		}
		deleted = len(nos)
		return nil
	})
	return deleted, err
}

// UpsertPage inserts or updates a page by (issue_no, page_no).
func (s *Store) UpsertPage(ctx context.Context, page *newsletter.Page) error {
	rec := &PageRecord{
		IssueNo:     page.IssueNo,
		PageNo:      page.PageNo,
		ImageURL:    page.ImageURL,
		ContentHash: page.ContentHash,
		Text:        page.Text,
		Provider:    page.Provider,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "issue_no"}, {Name: "page_no"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"image_url", "content_hash", "text", "provider", "updated_at",
		}),
	}).Create(rec).Error
}

// PageUnchanged reports whether the stored page already carries this
// content hash, letting the pipeline skip the recognition call entirely.
func (s *Store) PageUnchanged(ctx context.Context, issueNo, pageNo int, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&PageRecord{}).
		Where("issue_no = ? AND page_no = ? AND content_hash = ?", issueNo, pageNo, contentHash).
		Count(&count).Error
	return count > 0, err
}

// ReplaceSegments deletes the page's prior segments and chunks, then
// inserts the new set. Chunk rows for the deleted segments go too, so a
// reprocessed page never leaves orphaned vectors behind.
func (s *Store) ReplaceSegments(ctx context.Context, issueNo, pageNo int, segments []*newsletter.Segment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldIDs []string
		if err := tx.Model(&SegmentRecord{}).
			Where("issue_no = ? AND page_no = ?", issueNo, pageNo).
			Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("segment_id IN ?", oldIDs).Delete(&ChunkRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&SegmentRecord{}).Error; err != nil {
				return err
			}
		}

		if len(segments) == 0 {
			return nil
		}
		recs := make([]SegmentRecord, len(segments))
		for i, seg := range segments {
			recs[i] = SegmentRecord{
				ID:                seg.ID,
				IssueNo:           issueNo,
				PageNo:            pageNo,
				Idx:               seg.Index,
				Title:             seg.Title,
				Body:              seg.Body,
				Type:              seg.Type,
				Speaker:           seg.Speaker,
				EventName:         seg.EventName,
				EventDate:         seg.EventDate,
				ScriptureRefs:     toJSON(seg.ScriptureRefs),
				Keywords:          toJSON(seg.Keywords),
				ContinuesFromPrev: seg.ContinuesFromPrev,
				ContinuesToNext:   seg.ContinuesToNext,
			}
		}
		return tx.Create(&recs).Error
	})
}

// SaveChunks inserts a segment's chunk list in one transaction. All-or-
// nothing: a failed batch leaves no partial chunks for the segment.
func (s *Store) SaveChunks(ctx context.Context, chunks []*newsletter.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	recs := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		recs[i] = ChunkRecord{
			ID:           c.ID,
			SegmentID:    c.SegmentID,
			Idx:          c.Index,
			Text:         c.Text,
			IssueNo:      c.IssueNo,
			PageNo:       c.PageNo,
			SegmentTitle: c.SegmentTitle,
			SourceKind:   string(c.SourceKind),
			Embedding:    toJSON(c.Embedding),
		}
	}
	return s.db.WithContext(ctx).Create(&recs).Error
}

// CountChunks returns how many chunks an issue has.
func (s *Store) CountChunks(ctx context.Context, issueNo int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ChunkRecord{}).
		Where("issue_no = ?", issueNo).
		Count(&count).Error
	return count, err
}

// SegmentsForPage returns a page's segments in order.
func (s *Store) SegmentsForPage(ctx context.Context, issueNo, pageNo int) ([]*newsletter.Segment, error) {
	var recs []SegmentRecord
	if err := s.db.WithContext(ctx).
		Where("issue_no = ? AND page_no = ?", issueNo, pageNo).
		Order("idx ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	segments := make([]*newsletter.Segment, len(recs))
	for i := range recs {
		segments[i] = recs[i].Segment()
	}
	return segments, nil
}
