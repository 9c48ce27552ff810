package acl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/jsamuelsen/quotebook/internal/adapters/clients"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// rest issues Discord REST calls and turns failures into domain errors,
// so callers only ever see a body to decode or a domain error.
type rest struct {
	client *clients.Client
}

func (r rest) get(ctx context.Context, path, operation, entityID string) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, path)

	return r.check(resp, err, operation, entityID)
}

// send issues a write. payload is JSON encoded into a rewindable reader so
// client retries replay it; nil sends no body.
func (r rest) send(ctx context.Context, method, path string, payload any, operation, entityID string) (io.ReadCloser, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", operation, err)
		}

		body = bytes.NewReader(data)
	}

	var (
		resp *http.Response
		err  error
	)

	switch method {
	case http.MethodPost:
		resp, err = r.client.Post(ctx, path, body)
	case http.MethodPatch:
		resp, err = r.client.Patch(ctx, path, body)
	case http.MethodPut:
		resp, err = r.client.Put(ctx, path, body)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}

	return r.check(resp, err, operation, entityID)
}

func (r rest) check(resp *http.Response, err error, operation, entityID string) (io.ReadCloser, error) {
	if err != nil {
		return nil, translateFailure(nil, err, operation, entityID)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()

		return nil, translateFailure(resp, nil, operation, entityID)
	}

	return resp.Body, nil
}

// decode reads a JSON body into T and closes it. A malformed body means
// Discord answered with something this adapter does not understand.
func decode[T any](body io.ReadCloser) (*T, error) {
	defer func() { _ = body.Close() }()

	var out T
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, domain.NewUnavailableError(discordService, "decoding response: "+err.Error())
	}

	return &out, nil
}

// discard closes a body the caller has no use for.
func discard(body io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, body)

	return body.Close()
}
