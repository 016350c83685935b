package store

import (
	"context"

	"github.com/dwyoon/churchscan/internal/correct"
)

// CorrectionRules loads the admin-curated substitution table in insertion
// order. Rules that fail to compile are skipped with a warning rather than
// poisoning the whole table.
func (s *Store) CorrectionRules(ctx context.Context) ([]correct.Rule, error) {
	var recs []CorrectionRecord
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	rules := make([]correct.Rule, 0, len(recs))
	for _, rec := range recs {
		rule, err := correct.CompileRule(rec.Wrong, rec.Correct, rec.Category, rec.Confidence)
		if err != nil {
			s.logger.Warn("skipping uncompilable correction rule",
				"wrong", rec.Wrong,
				"error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Roster loads the proper-noun roster: person names with their positions,
// plus place names.
func (s *Store) Roster(ctx context.Context) (*correct.Roster, error) {
	var recs []RosterRecord
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	positions := make([]string, 0)
	for _, rec := range recs {
		names = append(names, rec.Name)
		if rec.Position != "" {
			positions = append(positions, rec.Position)
		}
	}
	return correct.NewRoster(names, positions), nil
}

// SaveRosterEntry adds or updates one roster entry. Used by seeding and
// admin tooling, not the pipeline.
func (s *Store) SaveRosterEntry(ctx context.Context, name, position, kind string) error {
	rec := &RosterRecord{Name: name, Position: position, Kind: kind}
	return s.db.WithContext(ctx).
		Where("name = ?", name).
		Assign(map[string]any{"position": position, "kind": kind}).
		FirstOrCreate(rec).Error
}
