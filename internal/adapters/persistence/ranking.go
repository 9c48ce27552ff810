package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// RankedView implements ports.QuoteRanker. Ties are broken by name so the
// order never depends on storage layout.
func (s *QuoteStore) RankedView(ctx context.Context, query ports.RankedViewQuery) ([]domain.RankedQuote, error) {
	db := s.db.WithContext(ctx).Model(&quoteRecord{})

	if query.Culprit != "" {
		db = db.Where("culprit = ?", query.Culprit)
	}

	switch query.SortKey {
	case domain.SortByCreatedAt:
		db = db.Order("created_at ASC").Order("name ASC")
	default:
		db = db.Order("upvotes DESC").Order("name ASC")
	}

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var records []quoteRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("querying ranked view: %w", err)
	}

	view := make([]domain.RankedQuote, 0, len(records))
	for _, rec := range records {
		view = append(view, rec.toSummary())
	}

	return view, nil
}

// RandomQuote implements ports.QuoteRanker. The pick happens in the
// database so every eligible row at query time has the same chance.
func (s *QuoteStore) RandomQuote(ctx context.Context, minUpvotes int) (domain.Quote, bool, error) {
	var rec quoteRecord

	err := s.db.WithContext(ctx).
		Where("upvotes >= ?", minUpvotes).
		Order("RANDOM()").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Quote{}, false, nil
	}

	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("picking random quote: %w", err)
	}

	return rec.toDomain(), true, nil
}

// Culprits implements ports.QuoteRanker. Spellings differing only in case
// collapse to one entry, the lowest spelling in byte order. Case is folded
// here rather than in SQL because SQLite's LOWER only folds ASCII.
func (s *QuoteStore) Culprits(ctx context.Context, fragment string, limit int) ([]string, error) {
	var spellings []string

	err := s.db.WithContext(ctx).Model(&quoteRecord{}).
		Where("culprit <> ''").
		Distinct().
		Order("culprit ASC").
		Pluck("culprit", &spellings).Error
	if err != nil {
		return nil, fmt.Errorf("listing culprits: %w", err)
	}

	seen := make(map[string]struct{}, len(spellings))
	culprits := make([]string, 0, len(spellings))

	for _, spelling := range matching(spellings, fragment) {
		key := strings.ToLower(spelling)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		culprits = append(culprits, spelling)
	}

	slices.SortStableFunc(culprits, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})

	return capped(culprits, limit), nil
}

// SearchNames implements ports.QuoteRanker. Matching is case-insensitive for
// any script, so it is done on the plucked names.
func (s *QuoteStore) SearchNames(ctx context.Context, fragment string, limit int) ([]string, error) {
	var names []string

	err := s.db.WithContext(ctx).Model(&quoteRecord{}).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("searching quote names: %w", err)
	}

	return capped(matching(names, fragment), limit), nil
}

// matching keeps the values containing fragment, ignoring case. Order is kept.
func matching(values []string, fragment string) []string {
	needle := strings.ToLower(fragment)

	return slices.DeleteFunc(values, func(v string) bool {
		return !strings.Contains(strings.ToLower(v), needle)
	})
}

func capped(values []string, limit int) []string {
	if limit >= 0 && len(values) > limit {
		return values[:limit]
	}

	return values
}
