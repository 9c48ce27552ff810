//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// testContext is the state of one scenario.
type testContext struct {
	baseURL      string
	client       *http.Client
	headers      http.Header
	suffix       string
	response     *http.Response
	responseBody []byte
	err          error
}

// newTestContext targets BASE_URL, defaulting to a locally running service.
func newTestContext() *testContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &testContext{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(http.Header),
	}
}

// reset clears response state between scenarios. Each scenario gets a
// fresh suffix so quote names do not collide on a shared database.
func (tc *testContext) reset() {
	if tc.response != nil && tc.response.Body != nil {
		tc.response.Body.Close()
	}
	tc.response = nil
	tc.responseBody = nil
	tc.err = nil
	tc.headers = make(http.Header)
	tc.suffix = uuid.NewString()[:8]
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newTestContext()

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I am user "([^"]*)"$`, tc.iAmUser)
	ctx.Step(`^I have role "([^"]*)"$`, tc.iHaveRole)
	ctx.Step(`^I request GET "([^"]*)"$`, tc.iRequestGET)
	ctx.Step(`^I request (POST|PUT|PATCH|DELETE) "([^"]*)"$`, tc.iRequest)
	ctx.Step(`^I request (POST|PUT|PATCH) "([^"]*)" with:$`, tc.iRequestWith)
	ctx.Step(`^a quote "([^"]*)" by "([^"]*)" saying "([^"]*)"$`, tc.aQuote)
	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^quote "([^"]*)" should have (\d+) upvotes?$`, tc.quoteShouldHaveUpvotes)
}

// expand replaces {id} with the scenario suffix.
func (tc *testContext) expand(s string) string {
	return strings.ReplaceAll(s, "{id}", tc.suffix)
}

// theServiceIsRunning verifies the service is reachable.
func (tc *testContext) theServiceIsRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+"/-/live", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("service is not running at %s: %w", tc.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}

	return nil
}

func (tc *testContext) iAmUser(id string) error {
	tc.headers.Set("X-User-ID", tc.expand(id))
	return nil
}

func (tc *testContext) iHaveRole(role string) error {
	tc.headers.Set("X-User-Roles", role)
	return nil
}

// iRequestGET makes a GET request to the specified path.
func (tc *testContext) iRequestGET(path string) error {
	return tc.do(http.MethodGet, path, "")
}

func (tc *testContext) iRequest(method, path string) error {
	return tc.do(method, path, "")
}

func (tc *testContext) iRequestWith(method, path string, body *godog.DocString) error {
	return tc.do(method, path, body.Content)
}

// aQuote submits a quote and fails the step unless it was created.
func (tc *testContext) aQuote(name, culprit, content string) error {
	body := fmt.Sprintf(`{"name":%q,"content":%q,"culprit":%q}`, tc.expand(name), content, tc.expand(culprit))
	if err := tc.do(http.MethodPost, "/api/v1/quotes", body); err != nil {
		return err
	}

	return tc.theResponseStatusShouldBe(http.StatusCreated)
}

func (tc *testContext) do(method, path, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(tc.expand(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+tc.expand(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range tc.headers {
		req.Header[key] = values
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if tc.response != nil && tc.response.Body != nil {
		tc.response.Body.Close()
	}

	tc.response, tc.err = tc.client.Do(req)
	if tc.err != nil {
		return fmt.Errorf("request failed: %w", tc.err)
	}

	tc.responseBody, tc.err = io.ReadAll(tc.response.Body)
	if tc.err != nil {
		return fmt.Errorf("failed to read response body: %w", tc.err)
	}

	return nil
}

// theResponseStatusShouldBe asserts the response status code.
func (tc *testContext) theResponseStatusShouldBe(expectedCode int) error {
	if tc.response == nil {
		return fmt.Errorf("no response received")
	}

	if tc.response.StatusCode != expectedCode {
		return fmt.Errorf("expected status %d, got %d. Body: %s",
			expectedCode, tc.response.StatusCode, string(tc.responseBody))
	}

	return nil
}

// theResponseShouldContain asserts the response body contains the given text.
func (tc *testContext) theResponseShouldContain(text string) error {
	if tc.responseBody == nil {
		return fmt.Errorf("no response body")
	}

	body := string(tc.responseBody)
	if !strings.Contains(body, tc.expand(text)) {
		return fmt.Errorf("response body does not contain %q.\nBody: %s", text, body)
	}

	return nil
}

// quoteShouldHaveUpvotes fetches the quote and compares its stored count.
func (tc *testContext) quoteShouldHaveUpvotes(name string, want int) error {
	if err := tc.do(http.MethodGet, "/api/v1/quotes/"+name, ""); err != nil {
		return err
	}

	if err := tc.theResponseStatusShouldBe(http.StatusOK); err != nil {
		return err
	}

	var quote struct {
		Upvotes int `json:"upvotes"`
	}
	if err := json.Unmarshal(tc.responseBody, &quote); err != nil {
		return fmt.Errorf("decoding quote: %w", err)
	}

	if quote.Upvotes != want {
		return fmt.Errorf("quote %s has %d upvotes, want %d", tc.expand(name), quote.Upvotes, want)
	}

	return nil
}

// TestFeatures runs the GoDog BDD test suite against a running service.
func TestFeatures(t *testing.T) {
	if os.Getenv("BASE_URL") == "" {
		t.Skip("BASE_URL not set; start the service and point BASE_URL at it")
	}

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
