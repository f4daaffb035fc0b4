package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/pagination"
)

// graphQLRequest is the body of every GraphQL call.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
	Flags     map[string]any `json:"flags,omitempty"`
}

func resultFlags() map[string]any {
	return map[string]any{"variableResultSize": true}
}

// executeGraphQL posts a GraphQL document and returns the raw response body.
func (c *Client) executeGraphQL(ctx context.Context, operation, document string, variables map[string]any, retry RetryConfig) ([]byte, error) {
	return c.transport.Do(ctx, Request{
		Operation: operation,
		Method:    http.MethodPost,
		URL:       c.config.GraphQLURL,
		Body: graphQLRequest{
			Query:     document,
			Variables: variables,
			Flags:     resultFlags(),
		},
		Retry:       retry,
		CheckErrors: true,
	})
}

// ExecuteGraphQL runs an arbitrary GraphQL document and returns its data object.
func (c *Client) ExecuteGraphQL(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	body, err := c.executeGraphQL(ctx, "graphql", document, variables, c.config.Retry)
	if err != nil {
		return nil, err
	}
	return decodeData(body)
}

// decodeData returns the data member of a GraphQL response body.
func decodeData(body []byte) (json.RawMessage, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", j1ql.ErrMalformedResponse, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("%w: response has no data", j1ql.ErrMalformedResponse)
	}
	return envelope.Data, nil
}

// decodeField decodes data.<field> of a GraphQL response body into T.
func decodeField[T any](body []byte, field string) (T, error) {
	var zero T
	data, err := decodeData(body)
	if err != nil {
		return zero, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zero, fmt.Errorf("%w: decode data: %v", j1ql.ErrMalformedResponse, err)
	}
	raw, ok := fields[field]
	if !ok || string(raw) == "null" {
		return zero, fmt.Errorf("%w: missing data.%s", j1ql.ErrMalformedResponse, field)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: decode data.%s: %v", j1ql.ErrMalformedResponse, field, err)
	}
	return v, nil
}

// fetchCursorPage is the single-page executor for cursor mode.
func (c *Client) fetchCursorPage(ctx context.Context, req pagination.PageRequest) (j1ql.Page, error) {
	variables := map[string]any{
		"query":          req.Query,
		"includeDeleted": req.IncludeDeleted,
		"flags":          resultFlags(),
	}
	if req.Cursor != "" {
		variables["cursor"] = req.Cursor
	}
	if len(req.Variables) > 0 {
		variables["variables"] = req.Variables
	}

	body, err := c.executeGraphQL(ctx, "query_cursor", j1ql.CursorQueryV1, variables, c.config.Retry)
	if err != nil {
		return j1ql.Page{}, err
	}
	return j1ql.DecodeQueryV1(body)
}

// fetchLegacyPage is the single-page executor for skip/limit mode. The
// window is already spelled out in req.Query.
func (c *Client) fetchLegacyPage(ctx context.Context, req pagination.PageRequest) (j1ql.Page, error) {
	variables := map[string]any{
		"query":          req.Query,
		"includeDeleted": req.IncludeDeleted,
	}
	if len(req.Variables) > 0 {
		variables["variables"] = req.Variables
	}

	body, err := c.executeGraphQL(ctx, "query_skip_limit", j1ql.QueryV1, variables, c.config.Retry)
	if err != nil {
		return j1ql.Page{}, err
	}
	return j1ql.DecodeQueryV1(body)
}

// deferredSource submits deferred queries through the client and polls the
// returned result URLs.
type deferredSource struct {
	client *Client
}

// Submit implements pagination.DeferredSource.
func (s deferredSource) Submit(ctx context.Context, req pagination.PageRequest) (string, error) {
	variables := map[string]any{
		"query":            req.Query,
		"includeDeleted":   req.IncludeDeleted,
		"deferredResponse": j1ql.DeferredForce,
		"flags":            resultFlags(),
	}
	if req.Cursor != "" {
		variables["cursor"] = req.Cursor
	}
	if len(req.Variables) > 0 {
		variables["variables"] = req.Variables
	}

	body, err := s.client.executeGraphQL(ctx, "query_deferred", j1ql.DeferredQueryV1, variables, s.client.config.DeferredRetry)
	if err != nil {
		return "", err
	}
	page, err := j1ql.DecodeQueryV1(body)
	if err != nil {
		return "", err
	}
	if page.Kind != j1ql.KindDeferred {
		return "", fmt.Errorf("%w: deferred query returned a %s page without url", j1ql.ErrMalformedResponse, page.Kind)
	}
	return page.URL, nil
}

// Poll implements pagination.DeferredSource.
func (s deferredSource) Poll(ctx context.Context, url string) (j1ql.StatusPage, error) {
	body, err := s.client.transport.Do(ctx, Request{
		Operation: "deferred_poll",
		Method:    http.MethodGet,
		URL:       url,
		Retry:     s.client.config.Retry,
		Anonymous: true,
	})
	if err != nil {
		return j1ql.StatusPage{}, err
	}
	return j1ql.DecodeStatusPage(body)
}
