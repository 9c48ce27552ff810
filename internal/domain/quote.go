// Package domain contains core business entities and rules.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout renders day-precision dates in list entries (dd.MM.yy).
const DisplayDateLayout = "02.01.06"

// Quote is an attributed statement kept in the quote book.
// This is a domain entity - it has no knowledge of external systems.
type Quote struct {
	// Name is the unique, case-sensitive key of the quote.
	Name string

	// Content is the text of the quote.
	Content string

	// Culprit is the person the quote is attributed to.
	Culprit string

	// FilePath references attached media. Empty means none.
	FilePath string

	// Upvotes equals the number of users currently upvoting the quote.
	Upvotes int

	// CreatedAt is when the quote was said. Supplied by the submitter.
	CreatedAt time.Time

	// RecordedAt is when the quote was stored. Used only for retention.
	RecordedAt time.Time
}

// HasMedia reports whether a media file is attached.
func (q Quote) HasMedia() bool {
	return q.FilePath != ""
}

// Summary returns the ranked summary record for the quote.
func (q Quote) Summary() RankedQuote {
	return RankedQuote{
		Name:      q.Name,
		Content:   q.Content,
		Culprit:   q.Culprit,
		Upvotes:   q.Upvotes,
		CreatedAt: q.CreatedAt,
	}
}

// QuoteEdit is a partial update. Nil fields are left untouched.
type QuoteEdit struct {
	NewName   *string
	Content   *string
	Culprit   *string
	CreatedAt *time.Time
}

// IsEmpty reports whether the edit would change nothing.
func (e QuoteEdit) IsEmpty() bool {
	return e.NewName == nil && e.Content == nil && e.Culprit == nil && e.CreatedAt == nil
}

// Normalize drops empty strings and zero times so only real changes remain.
func (e QuoteEdit) Normalize() QuoteEdit {
	blank := func(s *string) *string {
		if s == nil || *s == "" {
			return nil
		}

		return s
	}

	out := QuoteEdit{
		NewName: blank(e.NewName),
		Content: blank(e.Content),
		Culprit: blank(e.Culprit),
	}

	if e.CreatedAt != nil && !e.CreatedAt.IsZero() {
		out.CreatedAt = e.CreatedAt
	}

	return out
}

// Renames reports whether the edit moves the quote from name to a different key.
func (e QuoteEdit) Renames(name string) bool {
	return e.NewName != nil && *e.NewName != name
}

// SortKey selects the ordering of a ranked view.
type SortKey string

const (
	// SortByUpvotes orders most upvoted first.
	SortByUpvotes SortKey = "upvotes"

	// SortByCreatedAt orders oldest first.
	SortByCreatedAt SortKey = "date"
)

// ParseSortKey maps user input to a SortKey. Empty input selects SortByUpvotes.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByUpvotes:
		return SortByUpvotes, nil
	case SortByCreatedAt, "created_at":
		return SortByCreatedAt, nil
	default:
		return "", NewValidationErrorWithValue("sort", "must be one of upvotes, date", s)
	}
}

// RankedQuote is one entry of a ranked view. Its rank is its position in the view.
type RankedQuote struct {
	Name      string
	Content   string
	Culprit   string
	Upvotes   int
	CreatedAt time.Time
}

// Display renders the list entry "{upvotes}: {name} - {culprit}, {dd.MM.yy}".
func (r RankedQuote) Display() string {
	return fmt.Sprintf("%d: %s - %s, %s", r.Upvotes, r.Name, r.Culprit, r.CreatedAt.Format(DisplayDateLayout))
}

// Same reports whether two entries would render identically on the leaderboard.
func (r RankedQuote) Same(other RankedQuote) bool {
	return r.Name == other.Name &&
		r.Content == other.Content &&
		r.Culprit == other.Culprit &&
		r.Upvotes == other.Upvotes &&
		r.CreatedAt.Equal(other.CreatedAt)
}
