package dto

import (
	"errors"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// Accepted layouts for quote dates, tried in order.
var dateLayouts = []string{
	"02.01.2006",
	time.DateOnly,
	time.RFC3339,
}

// ErrInvalidDate is returned for dates in none of the accepted layouts.
var ErrInvalidDate = errors.New("date must be dd.MM.yyyy, yyyy-MM-dd or RFC 3339")

// ParseDate parses a quote date. An empty string yields the zero time.
// Dates without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// SubmitQuoteRequest is the body of POST /api/v1/quotes.
type SubmitQuoteRequest struct {
	Name      string `json:"name"                 validate:"required,notempty,singleline,max=200"`
	Content   string `json:"content"              validate:"required,notempty,max=4000"`
	Culprit   string `json:"culprit"              validate:"required,notempty,singleline,max=200"`
	CreatedAt string `json:"created_at,omitempty"`
	FilePath  string `json:"file_path,omitempty"  validate:"omitempty,singleline,max=1024"`
}

// Validate implements Validatable.
func (r *SubmitQuoteRequest) Validate() error {
	if _, err := ParseDate(r.CreatedAt); err != nil {
		return domain.NewValidationErrorWithValue("created_at", err.Error(), r.CreatedAt)
	}

	return nil
}

// ModifyQuoteRequest is the body of PATCH /api/v1/quotes/:name.
// Omitted and empty fields are left unchanged.
type ModifyQuoteRequest struct {
	NewName   *string `json:"new_name,omitempty"   validate:"omitempty,singleline,max=200"`
	Content   *string `json:"content,omitempty"    validate:"omitempty,max=4000"`
	Culprit   *string `json:"culprit,omitempty"    validate:"omitempty,singleline,max=200"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// Validate implements Validatable.
func (r *ModifyQuoteRequest) Validate() error {
	if r.CreatedAt == nil {
		return nil
	}

	if _, err := ParseDate(*r.CreatedAt); err != nil {
		return domain.NewValidationErrorWithValue("created_at", err.Error(), *r.CreatedAt)
	}

	return nil
}

// ToEdit converts the request to a domain edit. Call after validation.
func (r *ModifyQuoteRequest) ToEdit() domain.QuoteEdit {
	edit := domain.QuoteEdit{
		NewName: r.NewName,
		Content: r.Content,
		Culprit: r.Culprit,
	}

	if r.CreatedAt != nil {
		if t, err := ParseDate(*r.CreatedAt); err == nil && !t.IsZero() {
			edit.CreatedAt = &t
		}
	}

	return edit
}

// AttachMediaRequest is the body of PUT /api/v1/quotes/:name/media.
type AttachMediaRequest struct {
	FilePath string `json:"file_path" validate:"required,notempty,singleline,max=1024"`
}

// ListQuotesQuery holds the query parameters of GET /api/v1/quotes.
type ListQuotesQuery struct {
	Sort    string `form:"sort"    validate:"sortkey"`
	Culprit string `form:"culprit"`
	Limit   int    `form:"limit"   validate:"omitempty,gte=1,lte=1000"`
}

// RandomQuoteQuery holds the query parameters of GET /api/v1/quotes/random.
type RandomQuoteQuery struct {
	MinUpvotes int `form:"min_upvotes" validate:"omitempty,gte=0"`
}

// AutocompleteQuery holds the query parameter of the autocomplete routes.
type AutocompleteQuery struct {
	Q string `form:"q" validate:"max=100"`
}

// QuoteResponse is the full record of a quote.
type QuoteResponse struct {
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Culprit    string    `json:"culprit"`
	FilePath   string    `json:"file_path,omitempty"`
	Upvotes    int       `json:"upvotes"`
	CreatedAt  time.Time `json:"created_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		Name:       q.Name,
		Content:    q.Content,
		Culprit:    q.Culprit,
		FilePath:   q.FilePath,
		Upvotes:    q.Upvotes,
		CreatedAt:  q.CreatedAt,
		RecordedAt: q.RecordedAt,
	}
}

// RankedQuoteResponse is one entry of a ranked view.
type RankedQuoteResponse struct {
	Rank      int       `json:"rank"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Culprit   string    `json:"culprit"`
	Upvotes   int       `json:"upvotes"`
	CreatedAt time.Time `json:"created_at"`
	Display   string    `json:"display"`
}

// RankedListResponse wraps a ranked view.
type RankedListResponse struct {
	Items []RankedQuoteResponse `json:"items"`
	Count int                   `json:"count"`
}

// NewRankedListResponse converts a ranked view; rank is the 1-based position.
func NewRankedListResponse(view []domain.RankedQuote) RankedListResponse {
	items := make([]RankedQuoteResponse, len(view))
	for i, r := range view {
		items[i] = RankedQuoteResponse{
			Rank:      i + 1,
			Name:      r.Name,
			Content:   r.Content,
			Culprit:   r.Culprit,
			Upvotes:   r.Upvotes,
			CreatedAt: r.CreatedAt,
			Display:   r.Display(),
		}
	}

	return RankedListResponse{Items: items, Count: len(items)}
}

// VoteStatusResponse reports whether the caller upvotes a quote.
type VoteStatusResponse struct {
	Name  string `json:"name"`
	Voted bool   `json:"voted"`
}

// MediaResponse reports the media path that was detached.
type MediaResponse struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
}

// RemovedQuoteResponse is returned by DELETE; the caller deletes FilePath.
type RemovedQuoteResponse struct {
	Removed QuoteResponse `json:"removed"`
}

// CleanupResponse reports the outcome of a retention sweep.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// QuoteOfTheWeekResponse reports the weekly pick.
type QuoteOfTheWeekResponse struct {
	Quote     QuoteResponse `json:"quote"`
	Announced bool          `json:"announced"`
}

// NamesResponse lists autocompletion candidates.
type NamesResponse struct {
	Items []string `json:"items"`
}

// LeaderboardResponse is the current top ranking and its rendered message.
type LeaderboardResponse struct {
	RankedListResponse

	Rendered string `json:"rendered"`
}
