package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// QuoteHandler handles quote-related HTTP endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		service: service,
	}
}

// Submit handles POST /api/v1/quotes.
//
// @Summary Record a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body dto.SubmitQuoteRequest true "Quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) Submit(c *gin.Context) {
	var req dto.SubmitQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	createdAt, _ := dto.ParseDate(req.CreatedAt)

	quote, err := h.service.Submit(c.Request.Context(), app.SubmitInput{
		Name:      req.Name,
		Content:   req.Content,
		Culprit:   req.Culprit,
		CreatedAt: createdAt,
		FilePath:  req.FilePath,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// Fetch handles GET /api/v1/quotes/:name.
//
// @Summary Get a quote by name
// @Tags quotes
// @Produce json
// @Param name path string true "Quote name"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{name} [get]
func (h *QuoteHandler) Fetch(c *gin.Context) {
	quote, err := h.service.Fetch(c.Request.Context(), c.Param("name"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// List handles GET /api/v1/quotes.
//
// @Summary List quotes in ranked order
// @Tags quotes
// @Produce json
// @Param sort query string false "upvotes or date"
// @Param culprit query string false "Only quotes by this culprit"
// @Param limit query int false "Maximum number of quotes"
// @Success 200 {object} dto.RankedListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) List(c *gin.Context) {
	var query dto.ListQuotesQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	sortKey, err := domain.ParseSortKey(query.Sort)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	view, err := h.service.List(c.Request.Context(), app.ListInput{
		Sort:    sortKey,
		Culprit: query.Culprit,
		Limit:   query.Limit,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRankedListResponse(view))
}

// RandomPick handles GET /api/v1/quotes/random.
//
// @Summary Get a random quote
// @Tags quotes
// @Produce json
// @Param min_upvotes query int false "Minimum upvotes"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomPick(c *gin.Context) {
	var query dto.RandomQuoteQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	quote, err := h.service.RandomPick(c.Request.Context(), query.MinUpvotes)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Modify handles PATCH /api/v1/quotes/:name.
//
// @Summary Edit or rename a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param name path string true "Quote name"
// @Param request body dto.ModifyQuoteRequest true "Changes"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{name} [patch]
func (h *QuoteHandler) Modify(c *gin.Context) {
	var req dto.ModifyQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	quote, err := h.service.Modify(c.Request.Context(), c.Param("name"), req.ToEdit())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Remove handles DELETE /api/v1/quotes/:name.
// The response carries the removed record so the caller can delete its media.
//
// @Summary Delete a quote
// @Tags quotes
// @Produce json
// @Param name path string true "Quote name"
// @Success 200 {object} dto.RemovedQuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{name} [delete]
func (h *QuoteHandler) Remove(c *gin.Context) {
	quote, err := h.service.Remove(c.Request.Context(), c.Param("name"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RemovedQuoteResponse{Removed: dto.NewQuoteResponse(quote)})
}

// AttachMedia handles PUT /api/v1/quotes/:name/media.
func (h *QuoteHandler) AttachMedia(c *gin.Context) {
	var req dto.AttachMediaRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	name := c.Param("name")
	if err := h.service.AttachMedia(c.Request.Context(), name, req.FilePath); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MediaResponse{Name: name, FilePath: req.FilePath})
}

// DetachMedia handles DELETE /api/v1/quotes/:name/media.
// The response carries the detached path so the caller can delete the file.
func (h *QuoteHandler) DetachMedia(c *gin.Context) {
	name := c.Param("name")

	path, err := h.service.DetachMedia(c.Request.Context(), name)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MediaResponse{Name: name, FilePath: path})
}

// Vote handles PUT /api/v1/quotes/:name/upvote.
//
// @Summary Upvote a quote
// @Tags votes
// @Produce json
// @Param name path string true "Quote name"
// @Success 200 {object} dto.VoteStatusResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{name}/upvote [put]
func (h *QuoteHandler) Vote(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.Vote(c.Request.Context(), middleware.Subject(c), name); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VoteStatusResponse{Name: name, Voted: true})
}

// Unvote handles DELETE /api/v1/quotes/:name/upvote.
func (h *QuoteHandler) Unvote(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.Unvote(c.Request.Context(), middleware.Subject(c), name); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VoteStatusResponse{Name: name, Voted: false})
}

// HasVoted handles GET /api/v1/quotes/:name/upvote.
func (h *QuoteHandler) HasVoted(c *gin.Context) {
	name := c.Param("name")

	voted, err := h.service.HasVoted(c.Request.Context(), middleware.Subject(c), name)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VoteStatusResponse{Name: name, Voted: voted})
}

// Cleanup handles POST /api/v1/maintenance/cleanup.
//
// @Summary Delete stale unpopular quotes
// @Tags maintenance
// @Produce json
// @Success 200 {object} dto.CleanupResponse
// @Router /api/v1/maintenance/cleanup [post]
func (h *QuoteHandler) Cleanup(c *gin.Context) {
	removed, err := h.service.PeriodicCleanup(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{Removed: removed})
}

// QuoteOfTheWeek handles POST /api/v1/maintenance/quote-of-the-week.
func (h *QuoteHandler) QuoteOfTheWeek(c *gin.Context) {
	pick, err := h.service.QuoteOfTheWeek(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QuoteOfTheWeekResponse{
		Quote:     dto.NewQuoteResponse(pick.Quote),
		Announced: pick.Announced,
	})
}

// Leaderboard handles GET /api/v1/leaderboard.
func (h *QuoteHandler) Leaderboard(c *gin.Context) {
	board, err := h.service.Leaderboard(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaderboardResponse{
		RankedListResponse: dto.NewRankedListResponse(board),
		Rendered:           board.Render(),
	})
}

// RefreshLeaderboard handles POST /api/v1/leaderboard/refresh.
func (h *QuoteHandler) RefreshLeaderboard(c *gin.Context) {
	if err := h.service.RefreshLeaderboard(c.Request.Context()); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Culprits handles GET /api/v1/culprits.
func (h *QuoteHandler) Culprits(c *gin.Context) {
	h.autocomplete(c, h.service.Culprits)
}

// SearchNames handles GET /api/v1/quote-names.
func (h *QuoteHandler) SearchNames(c *gin.Context) {
	h.autocomplete(c, h.service.SearchNames)
}

func (h *QuoteHandler) autocomplete(c *gin.Context, lookup func(ctx context.Context, fragment string) ([]string, error)) {
	var query dto.AutocompleteQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	items, err := lookup(c.Request.Context(), query.Q)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if items == nil {
		items = []string{}
	}

	c.JSON(http.StatusOK, dto.NamesResponse{Items: items})
}

// QuoteRouteGuards are the middleware applied to routes that need a caller
// identity or an elevated role.
type QuoteRouteGuards struct {
	// Voter guards the upvote routes.
	Voter gin.HandlerFunc

	// Maintainer guards destructive and maintenance routes.
	Maintainer gin.HandlerFunc
}

// RegisterQuoteRoutes registers quote routes on the given router group.
// A nil guard leaves its routes open.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup, guards QuoteRouteGuards) {
	voter := guardChain(guards.Voter)
	maintainer := guardChain(guards.Maintainer)

	quotes := rg.Group("/quotes")
	quotes.POST("", h.Submit)
	quotes.GET("", h.List)
	quotes.GET("/random", h.RandomPick)
	quotes.GET("/:name", h.Fetch)
	quotes.PATCH("/:name", h.Modify)
	quotes.DELETE("/:name", append(maintainer, h.Remove)...)
	quotes.PUT("/:name/media", h.AttachMedia)
	quotes.DELETE("/:name/media", h.DetachMedia)
	quotes.PUT("/:name/upvote", append(voter, h.Vote)...)
	quotes.DELETE("/:name/upvote", append(voter, h.Unvote)...)
	quotes.GET("/:name/upvote", append(voter, h.HasVoted)...)

	maintenance := rg.Group("/maintenance", maintainer...)
	maintenance.POST("/cleanup", h.Cleanup)
	maintenance.POST("/quote-of-the-week", h.QuoteOfTheWeek)

	rg.GET("/leaderboard", h.Leaderboard)
	rg.POST("/leaderboard/refresh", append(maintainer, h.RefreshLeaderboard)...)

	rg.GET("/culprits", h.Culprits)
	rg.GET("/quote-names", h.SearchNames)
}

func guardChain(guard gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return nil
	}

	return []gin.HandlerFunc{guard}
}
