package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "empty is zero",
			input: "",
			want:  time.Time{},
		},
		{
			name:  "day first",
			input: "24.12.2023",
			want:  time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso date",
			input: "2023-12-24",
			want:  time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 normalized to utc",
			input: "2023-12-24T10:00:00+02:00",
			want:  time.Date(2023, 12, 24, 8, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
		{
			name:    "impossible date",
			input:   "31.02.2023",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDate)

				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestSubmitQuoteRequestValidate(t *testing.T) {
	valid := SubmitQuoteRequest{Name: "n", Content: "c", Culprit: "bob", CreatedAt: "01.02.2024"}
	require.NoError(t, ValidateAll(&valid))

	missing := SubmitQuoteRequest{Name: "n", Culprit: "bob"}
	err := ValidateAll(&missing)
	require.Error(t, err)
	assert.Contains(t, ValidationErrors(err), "content")

	badDate := SubmitQuoteRequest{Name: "n", Content: "c", Culprit: "bob", CreatedAt: "soon"}
	err = ValidateAll(&badDate)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "created_at", ve.Field)
}

func TestModifyQuoteRequest(t *testing.T) {
	t.Run("converts fields", func(t *testing.T) {
		name, date := "renamed", "2024-03-01"
		req := ModifyQuoteRequest{NewName: &name, CreatedAt: &date}
		require.NoError(t, ValidateAll(&req))

		edit := req.ToEdit()
		require.NotNil(t, edit.NewName)
		assert.Equal(t, "renamed", *edit.NewName)
		assert.Nil(t, edit.Content)
		require.NotNil(t, edit.CreatedAt)
		assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(*edit.CreatedAt))
	})

	t.Run("empty date leaves date unchanged", func(t *testing.T) {
		date := ""
		req := ModifyQuoteRequest{CreatedAt: &date}
		require.NoError(t, ValidateAll(&req))
		assert.Nil(t, req.ToEdit().CreatedAt)
	})

	t.Run("invalid date rejected", func(t *testing.T) {
		date := "32.13.2024"
		req := ModifyQuoteRequest{CreatedAt: &date}
		assert.True(t, domain.IsValidation(ValidateAll(&req)))
	})
}

func TestListQuotesQueryValidate(t *testing.T) {
	require.NoError(t, ValidateAll(&ListQuotesQuery{Sort: "date", Limit: 5}))
	require.NoError(t, ValidateAll(&ListQuotesQuery{}))

	err := ValidateAll(&ListQuotesQuery{Sort: "popularity"})
	require.Error(t, err)
	assert.Contains(t, ValidationErrors(err), "sort")
}

func TestNewRankedListResponse(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	view := []domain.RankedQuote{
		{Name: "a", Content: "x", Culprit: "bob", Upvotes: 3, CreatedAt: created},
		{Name: "b", Content: "y", Culprit: "eve", Upvotes: 1, CreatedAt: created},
	}

	resp := NewRankedListResponse(view)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 1, resp.Items[0].Rank)
	assert.Equal(t, 2, resp.Items[1].Rank)
	assert.Equal(t, view[0].Display(), resp.Items[0].Display)

	empty := NewRankedListResponse(nil)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.Count)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.NewNotFoundError("quote", "x"), http.StatusNotFound, ErrorCodeNotFound},
		{"duplicate", domain.NewDuplicateKeyError("x"), http.StatusConflict, ErrorCodeDuplicateName},
		{"already voted", domain.NewAlreadyVotedError("u", "x"), http.StatusConflict, ErrorCodeAlreadyVoted},
		{"not voted", domain.NewNotVotedError("u", "x"), http.StatusConflict, ErrorCodeNotVoted},
		{"validation", domain.NewValidationError("name", "bad"), http.StatusBadRequest, ErrorCodeValidation},
		{
			"publish",
			domain.NewExternalPublishError("leaderboard", errors.New("boom")),
			http.StatusServiceUnavailable,
			ErrorCodePublishFailed,
		},
		{"unavailable", domain.NewUnavailableError("db", "down"), http.StatusServiceUnavailable, ErrorCodeUnavailable},
		{"integrity", domain.NewIntegrityError("rename", errors.New("fk")), http.StatusInternalServerError, ErrorCodeIntegrity},
		{"wrapped not found", errors.Join(errors.New("ctx"), domain.NewNotFoundError("quote", "x")), http.StatusNotFound, ErrorCodeNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantStatus, HTTPStatusFromCode(resp.Error.Code))
		})
	}

	t.Run("nil", func(t *testing.T) {
		status, resp := MapDomainError(nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Nil(t, resp)
	})

	t.Run("validation carries field details", func(t *testing.T) {
		_, resp := MapDomainError(domain.NewValidationError("content", "must not be empty"))
		assert.Equal(t, map[string]string{"content": "must not be empty"}, resp.Error.Details)
	})

	t.Run("internal errors do not leak", func(t *testing.T) {
		_, resp := MapDomainError(errors.New("password=hunter2"))
		assert.NotContains(t, resp.Error.Message, "hunter2")
	})
}

func TestGetTraceIDFromSpan(t *testing.T) {
	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	c.Set("trace_id", "ignored")

	assert.Equal(t, traceID.String(), GetTraceID(c))
	assert.Empty(t, GetTraceID(nil))
}

func TestHandleBindError(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name       string
		body       string
		bind       func(c *gin.Context) error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name: "malformed json",
			body: `{"name":`,
			bind: func(c *gin.Context) error {
				var b body
				return BindAndValidate(c, &b)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeBadRequest,
		},
		{
			name: "missing field",
			body: `{}`,
			bind: func(c *gin.Context) error {
				var b body
				return BindAndValidate(c, &b)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidation,
			wantField:  "name",
		},
		{
			name: "custom validation",
			body: `{"name":"n","content":"c","culprit":"bob","created_at":"never"}`,
			bind: func(c *gin.Context) error {
				var b SubmitQuoteRequest
				return BindAndValidate(c, &b)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidation,
			wantField:  "created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			err := tt.bind(c)
			require.Error(t, err)

			HandleBindError(c, err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Details, tt.wantField)
			}
		})
	}
}
