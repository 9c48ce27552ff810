// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrConflict, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// QuoteRepository persists quotes and per-user upvotes.
//
// Every method that writes both tables does so in one transaction: the
// upvote counter always equals the number of upvote rows for the quote.
type QuoteRepository interface {
	// Create inserts a new quote.
	// Returns domain.ErrDuplicateKey if the name is taken.
	Create(ctx context.Context, quote domain.Quote) error

	// Get looks up a quote by exact name. A missing quote is reported
	// through the bool, not as an error.
	Get(ctx context.Context, name string) (domain.Quote, bool, error)

	// Delete removes a quote together with its upvotes.
	// Returns domain.ErrNotFound if the quote does not exist.
	Delete(ctx context.Context, name string) error

	// Rename moves a quote and all of its upvotes to newName atomically.
	// Returns domain.ErrDuplicateKey if newName is taken.
	Rename(ctx context.Context, oldName, newName string) error

	// EditFields applies a partial update in one transaction, rename included.
	// An empty edit is a no-op.
	EditFields(ctx context.Context, name string, edit domain.QuoteEdit) error

	// AttachMedia sets the media path of a quote.
	AttachMedia(ctx context.Context, name, path string) error

	// DetachMedia clears the media path of a quote.
	DetachMedia(ctx context.Context, name string) error

	// Upvote records the user's upvote and increments the counter.
	// Returns domain.ErrAlreadyVoted on a repeated vote and domain.ErrNotFound
	// if the quote does not exist.
	Upvote(ctx context.Context, userID, quoteName string) error

	// RemoveUpvote withdraws the user's upvote. Reports whether a vote was
	// removed; withdrawing a vote that does not exist is not an error.
	RemoveUpvote(ctx context.Context, userID, quoteName string) (bool, error)

	// HasVoted reports whether the user currently upvotes the quote.
	HasVoted(ctx context.Context, userID, quoteName string) (bool, error)

	// DeleteStale removes quotes with at most minUpvotes upvotes that were
	// recorded more than maxAge ago. Returns the number of quotes removed.
	DeleteStale(ctx context.Context, maxAge time.Duration, minUpvotes int) (int64, error)
}

// RankedViewQuery selects a ranked view.
type RankedViewQuery struct {
	// SortKey orders the view.
	SortKey domain.SortKey

	// Culprit restricts the view to one culprit (exact match) when non-empty.
	Culprit string

	// Limit truncates the view after sorting. Zero or less means no limit.
	Limit int
}

// QuoteRanker derives read-only views over the stored quotes.
type QuoteRanker interface {
	// RankedView returns summaries ordered by the query's sort key, ties
	// broken by name ascending.
	RankedView(ctx context.Context, query RankedViewQuery) ([]domain.RankedQuote, error)

	// RandomQuote picks one quote uniformly among those with at least
	// minUpvotes upvotes. Reports false when none qualifies.
	RandomQuote(ctx context.Context, minUpvotes int) (domain.Quote, bool, error)

	// Culprits lists distinct culprits containing fragment, case-insensitively.
	Culprits(ctx context.Context, fragment string, limit int) ([]string, error)

	// SearchNames lists quote names containing fragment, case-insensitively.
	SearchNames(ctx context.Context, fragment string, limit int) ([]string, error)
}

// PublishedMessage is a message on the external leaderboard surface.
type PublishedMessage struct {
	// ID is the opaque handle of the message.
	ID string

	// Content is the current message body.
	Content string

	// Pinned reports whether the message is pinned.
	Pinned bool
}

// LeaderboardPublisher manages the externally visible leaderboard message.
// Failures are reported as domain.ErrUnavailable.
type LeaderboardPublisher interface {
	// FindOwned returns the pinned leaderboard message previously published
	// by this service. Reports false when none exists.
	FindOwned(ctx context.Context) (PublishedMessage, bool, error)

	// Create publishes a new message and returns it.
	Create(ctx context.Context, content string) (PublishedMessage, error)

	// Pin pins a published message.
	Pin(ctx context.Context, messageID string) error

	// Edit replaces the body of a published message.
	Edit(ctx context.Context, messageID, content string) error
}

// Announcer posts one-off messages such as the quote of the week.
type Announcer interface {
	// Announce posts content to the announcement surface.
	Announce(ctx context.Context, content string) error
}
