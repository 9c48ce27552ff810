package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// SubmitInput describes a new quote.
type SubmitInput struct {
	Name    string
	Content string
	Culprit string

	// CreatedAt is when the quote was said. Zero means now.
	CreatedAt time.Time

	// FilePath references media the caller already stored. Optional.
	FilePath string
}

// ListInput selects a ranked view.
type ListInput struct {
	Sort    domain.SortKey
	Culprit string
	Limit   int
}

// WeeklyPick is the outcome of a quote of the week draw.
type WeeklyPick struct {
	Quote domain.Quote

	// Announced reports whether the pick was posted to the announce channel.
	Announced bool
}

// Submit stores a new quote together with its media reference, if any, in
// a single write.
func (s *QuoteService) Submit(ctx context.Context, in SubmitInput) (domain.Quote, error) {
	logger := s.loggerFor(ctx).With(slog.String("quote", in.Name))

	if err := validateSubmit(in); err != nil {
		return domain.Quote{}, fmt.Errorf("validating quote: %w", err)
	}

	err := s.repo.Create(ctx, domain.Quote{
		Name:      in.Name,
		Content:   in.Content,
		Culprit:   in.Culprit,
		CreatedAt: in.CreatedAt,
		FilePath:  in.FilePath,
	})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("creating quote: %w", err)
	}

	s.metrics.QuoteSubmitted(ctx)
	logger.InfoContext(ctx, "quote submitted", slog.String("culprit", in.Culprit))

	s.refresh(ctx, "submit")

	return s.Fetch(ctx, in.Name)
}

// Fetch returns the full record of a quote.
func (s *QuoteService) Fetch(ctx context.Context, name string) (domain.Quote, error) {
	quote, found, err := s.repo.Get(ctx, name)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("getting quote: %w", err)
	}

	if !found {
		return domain.Quote{}, domain.NewNotFoundError("quote", name)
	}

	return quote, nil
}

// List returns ranked summaries, best first by the chosen sort key.
func (s *QuoteService) List(ctx context.Context, in ListInput) ([]domain.RankedQuote, error) {
	sortKey := in.Sort
	if sortKey == "" {
		sortKey = domain.SortByUpvotes
	}

	view, err := s.ranker.RankedView(ctx, ports.RankedViewQuery{
		SortKey: sortKey,
		Culprit: in.Culprit,
		Limit:   in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	return view, nil
}

// RandomPick returns a uniformly chosen quote with at least minUpvotes
// upvotes. Returns domain.ErrNotFound when none qualifies.
func (s *QuoteService) RandomPick(ctx context.Context, minUpvotes int) (domain.Quote, error) {
	quote, found, err := s.ranker.RandomQuote(ctx, max(minUpvotes, 0))
	if err != nil {
		return domain.Quote{}, fmt.Errorf("picking random quote: %w", err)
	}

	if !found {
		return domain.Quote{}, domain.NewNotFoundError("quote", fmt.Sprintf("with at least %d upvotes", minUpvotes))
	}

	return quote, nil
}

// QuoteOfTheWeek draws a random well-liked quote and announces it when an
// announcer is configured. A failed announcement is logged; the pick is
// still returned.
func (s *QuoteService) QuoteOfTheWeek(ctx context.Context) (WeeklyPick, error) {
	quote, err := s.RandomPick(ctx, s.weeklyMin)
	if err != nil {
		return WeeklyPick{}, err
	}

	pick := WeeklyPick{Quote: quote}

	if s.announcer == nil {
		return pick, nil
	}

	if err := s.announcer.Announce(ctx, RenderQuoteOfTheWeek(quote)); err != nil {
		s.loggerFor(ctx).WarnContext(ctx, "quote of the week not announced",
			slog.String("quote", quote.Name),
			slog.Any("error", err),
		)

		return pick, nil
	}

	pick.Announced = true

	return pick, nil
}

// RenderQuoteOfTheWeek builds the announcement for a picked quote.
func RenderQuoteOfTheWeek(q domain.Quote) string {
	return fmt.Sprintf("## Quote of the week\n**%s**\n„%s”", q.Summary().Display(), q.Content)
}

// Remove deletes a quote and returns the removed record so the caller can
// clean up its media.
func (s *QuoteService) Remove(ctx context.Context, name string) (domain.Quote, error) {
	quote, err := s.Fetch(ctx, name)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return domain.Quote{}, fmt.Errorf("deleting quote: %w", err)
	}

	s.metrics.QuoteRemoved(ctx)
	s.loggerFor(ctx).InfoContext(ctx, "quote removed", slog.String("quote", name))

	s.refresh(ctx, "remove")

	return quote, nil
}

// Modify applies a partial edit, rename included, and returns the updated
// record. Blank fields are ignored; an edit that changes nothing is a no-op.
func (s *QuoteService) Modify(ctx context.Context, name string, edit domain.QuoteEdit) (domain.Quote, error) {
	edit = edit.Normalize()

	if edit.IsEmpty() {
		return s.Fetch(ctx, name)
	}

	if err := s.repo.EditFields(ctx, name, edit); err != nil {
		return domain.Quote{}, fmt.Errorf("editing quote: %w", err)
	}

	current := name
	if edit.Renames(name) {
		current = *edit.NewName
	}

	s.loggerFor(ctx).InfoContext(ctx, "quote modified",
		slog.String("quote", name),
		slog.String("current_name", current),
	)

	s.refresh(ctx, "modify")

	return s.Fetch(ctx, current)
}

// AttachMedia sets the media path of a quote.
func (s *QuoteService) AttachMedia(ctx context.Context, name, path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.NewValidationError("file_path", "cannot be empty")
	}

	if err := s.repo.AttachMedia(ctx, name, path); err != nil {
		return fmt.Errorf("attaching media: %w", err)
	}

	return nil
}

// DetachMedia clears the media path of a quote and returns the path that
// was attached, so the caller can delete the file.
func (s *QuoteService) DetachMedia(ctx context.Context, name string) (string, error) {
	quote, err := s.Fetch(ctx, name)
	if err != nil {
		return "", err
	}

	if err := s.repo.DetachMedia(ctx, name); err != nil {
		return "", fmt.Errorf("detaching media: %w", err)
	}

	return quote.FilePath, nil
}

// Vote records the user's upvote and refreshes the leaderboard.
// Returns domain.ErrAlreadyVoted on a repeated vote.
func (s *QuoteService) Vote(ctx context.Context, userID, name string) error {
	if err := validateUser(userID); err != nil {
		return err
	}

	if err := s.repo.Upvote(ctx, userID, name); err != nil {
		s.metrics.VoteRecorded(ctx, voteCast, voteStatus(err))

		return fmt.Errorf("upvoting quote: %w", err)
	}

	s.metrics.VoteRecorded(ctx, voteCast, voteOK)

	s.refresh(ctx, "vote")

	return nil
}

// Unvote withdraws the user's upvote and refreshes the leaderboard.
// Returns domain.ErrNotVoted when the user had not voted.
func (s *QuoteService) Unvote(ctx context.Context, userID, name string) error {
	if err := validateUser(userID); err != nil {
		return err
	}

	removed, err := s.repo.RemoveUpvote(ctx, userID, name)
	if err != nil {
		s.metrics.VoteRecorded(ctx, voteWithdrawn, voteStatus(err))

		return fmt.Errorf("removing upvote: %w", err)
	}

	if !removed {
		s.metrics.VoteRecorded(ctx, voteWithdrawn, "not_voted")

		return domain.NewNotVotedError(userID, name)
	}

	s.metrics.VoteRecorded(ctx, voteWithdrawn, voteOK)

	s.refresh(ctx, "unvote")

	return nil
}

// HasVoted reports whether the user upvotes the quote.
// Returns domain.ErrNotFound when the quote does not exist.
func (s *QuoteService) HasVoted(ctx context.Context, userID, name string) (bool, error) {
	if err := validateUser(userID); err != nil {
		return false, err
	}

	if _, err := s.Fetch(ctx, name); err != nil {
		return false, err
	}

	voted, err := s.repo.HasVoted(ctx, userID, name)
	if err != nil {
		return false, fmt.Errorf("checking vote: %w", err)
	}

	return voted, nil
}

// PeriodicCleanup runs the retention sweep and refreshes the leaderboard.
func (s *QuoteService) PeriodicCleanup(ctx context.Context) (int64, error) {
	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.refresh(ctx, "cleanup")
	}

	return removed, nil
}

// Culprits lists known culprits matching fragment, for autocompletion.
func (s *QuoteService) Culprits(ctx context.Context, fragment string) ([]string, error) {
	names, err := s.ranker.Culprits(ctx, strings.TrimSpace(fragment), MaxAutocompleteResults)
	if err != nil {
		return nil, fmt.Errorf("listing culprits: %w", err)
	}

	return names, nil
}

// SearchNames lists quote names matching fragment, for autocompletion.
func (s *QuoteService) SearchNames(ctx context.Context, fragment string) ([]string, error) {
	names, err := s.ranker.SearchNames(ctx, strings.TrimSpace(fragment), MaxAutocompleteResults)
	if err != nil {
		return nil, fmt.Errorf("searching quote names: %w", err)
	}

	return names, nil
}

// Leaderboard returns the current top quotes by upvotes.
func (s *QuoteService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	view, err := s.ranker.RankedView(ctx, ports.RankedViewQuery{
		SortKey: domain.SortByUpvotes,
		Limit:   s.boardSize,
	})
	if err != nil {
		return nil, fmt.Errorf("computing leaderboard: %w", err)
	}

	return domain.Leaderboard(view), nil
}

// RefreshLeaderboard forces a synchronizer run and reports its outcome.
// Returns domain.ErrUnavailable when mirroring is disabled.
func (s *QuoteService) RefreshLeaderboard(ctx context.Context) error {
	if s.leaderboard == nil {
		return domain.NewUnavailableError(leaderboardService, "leaderboard mirroring is disabled")
	}

	return s.leaderboard.Refresh(ctx)
}

func validateSubmit(in SubmitInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.NewValidationError("name", "cannot be empty")
	case strings.TrimSpace(in.Content) == "":
		return domain.NewValidationError("content", "cannot be empty")
	case strings.TrimSpace(in.Culprit) == "":
		return domain.NewValidationError("culprit", "cannot be empty")
	}

	return nil
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("user_id", "cannot be empty")
	}

	return nil
}

// Vote metric labels.
const (
	voteCast      = "cast"
	voteWithdrawn = "withdrawn"
	voteOK        = "ok"
)

// voteStatus labels a failed vote operation.
func voteStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
