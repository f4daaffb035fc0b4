package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/pagination"
	"github.com/samber/lo"
)

// FetchAllEntityProperties returns the aggregated property keys of all
// entities, excluding parameter and tag keys.
func (c *Client) FetchAllEntityProperties(ctx context.Context) ([]string, error) {
	properties, err := c.allAssetProperties(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(properties, func(p string, _ int) bool {
		return !strings.HasPrefix(p, "parameter.") && !strings.HasPrefix(p, "tag.")
	}), nil
}

// FetchAllEntityTags returns the aggregated tag keys of all entities.
func (c *Client) FetchAllEntityTags(ctx context.Context) ([]string, error) {
	properties, err := c.allAssetProperties(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(properties, func(p string, _ int) bool {
		return strings.HasPrefix(p, "tag.")
	}), nil
}

func (c *Client) allAssetProperties(ctx context.Context) ([]string, error) {
	properties, err := graphQLField[[]string](ctx, c, "all_properties", j1ql.AllProperties, "getAllAssetProperties", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch entity properties: %w", err)
	}
	return properties, nil
}

// pageInfo is the relay-style page descriptor of the admin list queries.
type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// listConnection pages through a pageInfo-paginated list query. field names
// the query's root field and items the member holding the page items.
func (c *Client) listConnection(ctx context.Context, operation, document, field, items string, variables map[string]any) ([]json.RawMessage, error) {
	return pagination.FetchConnection(ctx, func(ctx context.Context, cursor string) (pagination.Connection, error) {
		vars := lo.Assign(variables)
		if cursor != "" {
			vars["cursor"] = cursor
		}
		page, err := graphQLField[map[string]json.RawMessage](ctx, c, operation, document, field, vars)
		if err != nil {
			return pagination.Connection{}, err
		}

		var conn pagination.Connection
		if raw, ok := page[items]; ok {
			if err := json.Unmarshal(raw, &conn.Items); err != nil {
				return pagination.Connection{}, fmt.Errorf("%w: decode %s.%s: %v", j1ql.ErrMalformedResponse, field, items, err)
			}
		}
		var info pageInfo
		if raw, ok := page["pageInfo"]; ok {
			if err := json.Unmarshal(raw, &info); err != nil {
				return pagination.Connection{}, fmt.Errorf("%w: decode %s.pageInfo: %v", j1ql.ErrMalformedResponse, field, err)
			}
		}
		conn.HasNextPage = info.HasNextPage
		conn.EndCursor = info.EndCursor
		return conn, nil
	})
}

// ListQuestions returns every saved question, optionally filtered by a search term.
func (c *Client) ListQuestions(ctx context.Context, search string) ([]json.RawMessage, error) {
	var variables map[string]any
	if search != "" {
		variables = map[string]any{"searchQuery": search}
	}
	questions, err := c.listConnection(ctx, "list_questions", j1ql.Questions, "questions", "questions", variables)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// GetComplianceFrameworkItem returns one requirement of a compliance framework.
func (c *Client) GetComplianceFrameworkItem(ctx context.Context, itemID string) (json.RawMessage, error) {
	if itemID == "" {
		return nil, fmt.Errorf("compliance framework item id is required")
	}
	variables := map[string]any{"input": map[string]any{"id": itemID}}
	item, err := graphQLField[json.RawMessage](ctx, c, "compliance_framework_item", j1ql.ComplianceFrameworkItem, "complianceFrameworkItem", variables)
	if err != nil {
		return nil, fmt.Errorf("get compliance framework item %s: %w", itemID, err)
	}
	return item, nil
}

// GenerateJ1QL translates a natural language prompt into a J1QL query.
func (c *Client) GenerateJ1QL(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	variables := map[string]any{"input": map[string]any{"naturalLanguageQuery": prompt}}
	result, err := graphQLField[struct {
		J1QL string `json:"j1ql"`
	}](ctx, c, "generate_j1ql", j1ql.J1QLFromNaturalLanguage, "j1qlFromNaturalLanguage", variables)
	if err != nil {
		return "", fmt.Errorf("generate j1ql: %w", err)
	}
	return result.J1QL, nil
}

// Parameter is an account parameter.
type Parameter struct {
	Name          string `json:"name"`
	Value         any    `json:"value"`
	Secret        bool   `json:"secret"`
	LastUpdatedOn any    `json:"lastUpdatedOn,omitempty"`
}

// ListAccountParameters returns every account parameter.
func (c *Client) ListAccountParameters(ctx context.Context) ([]Parameter, error) {
	items, err := c.listConnection(ctx, "list_parameters", j1ql.ParameterList, "parameterList", "items", nil)
	if err != nil {
		return nil, fmt.Errorf("list account parameters: %w", err)
	}
	return j1ql.DecodeRecords[Parameter](items)
}

// GetParameter returns one account parameter by name.
func (c *Client) GetParameter(ctx context.Context, name string) (*Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("parameter name is required")
	}
	param, err := graphQLField[Parameter](ctx, c, "get_parameter", j1ql.Parameter, "parameter", map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("get parameter %q: %w", name, err)
	}
	return &param, nil
}

// UpsertParameter creates or updates an account parameter. value may be a
// string, number, boolean or list.
func (c *Client) UpsertParameter(ctx context.Context, name string, value any, secret bool) error {
	if name == "" {
		return fmt.Errorf("parameter name is required")
	}
	variables := map[string]any{
		"name":   name,
		"value":  value,
		"secret": secret,
	}
	result, err := graphQLField[struct {
		Success bool `json:"success"`
	}](ctx, c, "upsert_parameter", j1ql.UpsertParameter, "setParameter", variables)
	if err != nil {
		return fmt.Errorf("upsert parameter %q: %w", name, err)
	}
	if !result.Success {
		return fmt.Errorf("upsert parameter %q: server reported failure", name)
	}
	return nil
}

// SmartClass is a smart class with its queries and tags.
type SmartClass struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"accountId,omitempty"`
	TagName     string            `json:"tagName"`
	Description string            `json:"description"`
	RuleID      string            `json:"ruleId,omitempty"`
	Queries     []SmartClassQuery `json:"queries,omitempty"`
	Tags        json.RawMessage   `json:"tags,omitempty"`
	Rule        json.RawMessage   `json:"rule,omitempty"`
}

// SmartClassQuery is one query of a smart class.
type SmartClassQuery struct {
	ID           string `json:"id"`
	SmartClassID string `json:"smartClassId"`
	Description  string `json:"description"`
	Query        string `json:"query"`
}

// CreateSmartClass creates a smart class.
func (c *Client) CreateSmartClass(ctx context.Context, tagName, description string) (*SmartClass, error) {
	variables := map[string]any{
		"input": map[string]any{"tagName": tagName, "description": description},
	}
	class, err := graphQLField[SmartClass](ctx, c, "create_smart_class", j1ql.CreateSmartClass, "createSmartClass", variables)
	if err != nil {
		return nil, fmt.Errorf("create smart class %q: %w", tagName, err)
	}
	return &class, nil
}

// CreateSmartClassQuery adds a J1QL query to a smart class.
func (c *Client) CreateSmartClassQuery(ctx context.Context, smartClassID, query, description string) (*SmartClassQuery, error) {
	variables := map[string]any{
		"input": map[string]any{
			"smartClassId": smartClassID,
			"query":        query,
			"description":  description,
		},
	}
	q, err := graphQLField[SmartClassQuery](ctx, c, "create_smart_class_query", j1ql.CreateSmartClassQuery, "createSmartClassQuery", variables)
	if err != nil {
		return nil, fmt.Errorf("create smart class query: %w", err)
	}
	return &q, nil
}

// EvaluateSmartClass triggers evaluation of a smart class and returns the rule id.
func (c *Client) EvaluateSmartClass(ctx context.Context, smartClassID string) (string, error) {
	result, err := graphQLField[struct {
		RuleID string `json:"ruleId"`
	}](ctx, c, "evaluate_smart_class", j1ql.EvaluateSmartClass, "evaluateSmartClassRule", map[string]any{"smartClassId": smartClassID})
	if err != nil {
		return "", fmt.Errorf("evaluate smart class %s: %w", smartClassID, err)
	}
	return result.RuleID, nil
}

// GetSmartClass returns the details of a smart class.
func (c *Client) GetSmartClass(ctx context.Context, smartClassID string) (*SmartClass, error) {
	class, err := graphQLField[SmartClass](ctx, c, "get_smart_class", j1ql.GetSmartClassDetails, "smartClass", map[string]any{"id": smartClassID})
	if err != nil {
		return nil, fmt.Errorf("get smart class %s: %w", smartClassID, err)
	}
	return &class, nil
}
