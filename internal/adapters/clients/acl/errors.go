package acl

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/jsamuelsen/quotebook/internal/adapters/clients"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// apiError is the JSON body Discord sends with a 4xx.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Discord JSON error codes that decide the mapping ahead of the status.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeMaxPins            = 30003
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// readAPIError decodes a Discord error body. Unreadable or empty bodies yield nil.
func readAPIError(body io.Reader) *apiError {
	if body == nil {
		return nil
	}

	var e apiError
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&e); err != nil {
		return nil
	}

	if e.Code == 0 && e.Message == "" {
		return nil
	}

	return &e
}

// translateFailure maps a failed Discord call to a domain error.
//
// A missing message or channel is domain.ErrNotFound so the leaderboard
// synchronizer can recreate it; a rejected payload is domain.ErrValidation;
// everything else, auth and rate limits included, is domain.ErrUnavailable.
func translateFailure(resp *http.Response, callErr error, operation, entityID string) error {
	if callErr != nil {
		return translateCallError(callErr, operation)
	}

	if resp == nil {
		return domain.NewUnavailableError(discordService, operation+": no response")
	}

	apiErr := readAPIError(resp.Body)
	if apiErr != nil {
		if err := translateAPICode(apiErr, operation, entityID); err != nil {
			return err
		}
	}

	detail := http.StatusText(resp.StatusCode)
	if apiErr != nil && apiErr.Message != "" {
		detail = apiErr.Message
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.NewNotFoundError(discordService, entityID)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.NewValidationError(operation, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewUnavailableError(discordService, fmt.Sprintf("%s rejected: %s", operation, detail))
	default:
		return domain.NewUnavailableError(discordService, fmt.Sprintf("%s failed with status %d: %s", operation, resp.StatusCode, detail))
	}
}

func translateCallError(err error, operation string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUnavailableError(discordService, "circuit breaker open during "+operation)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.NewUnavailableError(discordService, "max retries exceeded during "+operation)
	default:
		return domain.NewUnavailableError(discordService, fmt.Sprintf("%s failed: %v", operation, err))
	}
}

// translateAPICode returns nil when the code has no specific meaning here.
func translateAPICode(e *apiError, operation, entityID string) error {
	switch e.Code {
	case codeUnknownMessage, codeUnknownChannel:
		return domain.NewNotFoundError(discordService, entityID)
	case codeMaxPins:
		return domain.NewUnavailableError(discordService, "channel pin limit reached")
	case codeMissingAccess, codeMissingPermissions:
		return domain.NewUnavailableError(discordService, fmt.Sprintf("%s not permitted: %s", operation, e.Message))
	default:
		return nil
	}
}
