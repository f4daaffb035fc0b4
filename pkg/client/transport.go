package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// maxErrorDetail bounds how much of an error body ends up in an APIError.
const maxErrorDetail = 512

// Request is a single JupiterOne API call as seen by the Transport.
type Request struct {
	// Operation labels logs and metrics ("query_cursor", "sync_upload", ...).
	Operation string
	Method    string
	URL       string
	// Body is marshalled to JSON when non-nil.
	Body  any
	Retry RetryConfig
	// Anonymous omits the credential headers. Deferred result URLs are
	// pre-signed and must be fetched without them.
	Anonymous bool
	// CheckErrors inspects 2xx bodies for a GraphQL errors array.
	CheckErrors bool
}

// Transport sends authenticated requests to the JupiterOne API and retries
// transient failures.
type Transport struct {
	httpClient  *http.Client
	account     string
	token       string
	rateLimiter *ratelimit.Tracker
	logger      zerolog.Logger
}

// NewTransport creates a Transport. rateLimiter may be nil.
func NewTransport(httpClient *http.Client, account, token string, rateLimiter *ratelimit.Tracker, logger zerolog.Logger) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Transport{
		httpClient:  httpClient,
		account:     account,
		token:       token,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Do executes req with retries and returns the response body of the first
// successful attempt.
func (t *Transport) Do(ctx context.Context, req Request) ([]byte, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", req.Operation, err)
		}
	}

	var body []byte
	err := retryWithBackoff(ctx, req.Retry, t.logger, req.Operation, func(attempt int) error {
		var attemptErr error
		body, attemptErr = t.attempt(ctx, req, payload, attempt)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (t *Transport) attempt(ctx context.Context, req Request, payload []byte, attempt int) ([]byte, error) {
	if t.rateLimiter != nil {
		if err := t.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Anonymous {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
		httpReq.Header.Set("JupiterOne-Account", t.account)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	requestDuration.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, t.networkError(req, attempt, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, t.networkError(req, attempt, fmt.Errorf("read body: %w", err))
	}
	requestsTotal.WithLabelValues(req.Operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if req.CheckErrors {
			if apiErr := decodeGraphQLErrors(body); apiErr != nil {
				errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
				t.logger.Debug().
					Str("operation", req.Operation).
					Str("error_class", string(apiErr.Class)).
					Int("attempt", attempt).
					Msg("GraphQL response carried errors")
				return nil, apiErr
			}
		}
		t.logger.Debug().
			Str("operation", req.Operation).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
		return body, nil
	}

	class, message := classifyStatus(resp.StatusCode)
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    message,
	}
	if class == ErrorClassClient {
		if detail := errorDetail(resp.Header, body); detail != "" {
			apiErr.Message = fmt.Sprintf("%d: %s", resp.StatusCode, detail)
		}
	}
	if class == ErrorClassRateLimit {
		t.observeRetryAfter(ctx, req, resp.Header, apiErr)
	}
	errorsTotal.WithLabelValues(string(class)).Inc()

	t.logger.Debug().
		Str("operation", req.Operation).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Int("attempt", attempt).
		Msg("Request failed")
	return nil, apiErr
}

// observeRetryAfter records the server-requested delay on the error and
// shares it as a cool-down with other clients of the same account.
func (t *Transport) observeRetryAfter(ctx context.Context, req Request, headers http.Header, apiErr *APIError) {
	wait, ok := ratelimit.ParseRetryAfter(headers, time.Now())
	if !ok || wait <= 0 {
		return
	}
	if req.Retry.MaxBackoff > 0 && wait > req.Retry.MaxBackoff {
		wait = req.Retry.MaxBackoff
	}
	apiErr.RetryAfter = wait
	if t.rateLimiter == nil {
		return
	}
	if err := t.rateLimiter.ObserveRetryAfter(ctx, wait); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to share rate limit cool-down")
	}
}

func (t *Transport) networkError(req Request, attempt int, err error) *APIError {
	requestsTotal.WithLabelValues(req.Operation, "network_error").Inc()
	errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
	t.logger.Debug().
		Err(err).
		Str("operation", req.Operation).
		Int("attempt", attempt).
		Msg("HTTP request failed")
	return &APIError{
		Class:   ErrorClassNetwork,
		Message: "request failed",
		Err:     err,
	}
}

// decodeGraphQLErrors returns the APIError for a body carrying a non-empty
// errors array, or nil. Bodies that are not JSON objects are left for the
// caller's decoder to reject.
func decodeGraphQLErrors(body []byte) *APIError {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var envelope struct {
		Errors []GraphQLError `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}
	return graphQLError(envelope.Errors)
}

// errorDetail extracts a human readable message from an error body: the
// error/errors member of a JSON body, otherwise the raw text.
func errorDetail(headers http.Header, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	mediaType, _, _ := mime.ParseMediaType(headers.Get("Content-Type"))
	if mediaType == "application/json" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err == nil {
			for _, name := range []string{"error", "errors", "message"} {
				raw, ok := fields[name]
				if !ok {
					continue
				}
				var s string
				if json.Unmarshal(raw, &s) == nil {
					return truncateDetail(s)
				}
				return truncateDetail(string(raw))
			}
		}
	}
	return truncateDetail(string(body))
}

func truncateDetail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorDetail {
		return s[:maxErrorDetail] + "..."
	}
	return s
}
