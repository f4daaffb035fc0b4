package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/samber/lo"
)

// evaluationResultsLimit is the page size of ListAlertRuleEvaluationResults.
const evaluationResultsLimit = 40

// AlertRule is an inline-question alert rule instance.
type AlertRule struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	Version             int                  `json:"version"`
	SpecVersion         int                  `json:"specVersion"`
	PollingInterval     string               `json:"pollingInterval"`
	Tags                []string             `json:"tags"`
	Labels              []AlertRuleLabel     `json:"labels"`
	Question            AlertRuleQuestion    `json:"question"`
	Operations          []AlertRuleOperation `json:"operations"`
	Outputs             []string             `json:"outputs,omitempty"`
	Templates           json.RawMessage      `json:"templates,omitempty"`
	ResourceGroupID     string               `json:"resourceGroupId,omitempty"`
	LatestAlertID       string               `json:"latestAlertId,omitempty"`
	LatestAlertIsActive bool                 `json:"latestAlertIsActive"`
}

// AlertRuleLabel is a name/value label attached to a rule.
type AlertRuleLabel struct {
	Name  string `json:"labelName"`
	Value string `json:"labelValue"`
}

// AlertRuleQuestion holds the J1QL queries a rule evaluates.
type AlertRuleQuestion struct {
	Queries []AlertRuleQuery `json:"queries"`
}

// AlertRuleQuery is one named query of a rule.
type AlertRuleQuery struct {
	Query          string `json:"query"`
	Name           string `json:"name"`
	Version        string `json:"version"`
	IncludeDeleted bool   `json:"includeDeleted"`
}

// AlertRuleOperation is a condition and the actions it triggers.
type AlertRuleOperation struct {
	When    json.RawMessage  `json:"when"`
	Actions []map[string]any `json:"actions"`
}

// AlertRuleInput configures a new alert rule. The rule raises an alert with
// Severity whenever Query returns at least one result.
type AlertRuleInput struct {
	Name            string
	Description     string
	Query           string
	PollingInterval string
	Severity        string
	Tags            []string
	Labels          []AlertRuleLabel
	// ActionConfigs run after the built-in SET_PROPERTY and CREATE_ALERT actions.
	ActionConfigs   []map[string]any
	ResourceGroupID string
}

// ListOp says how a list given to UpdateAlertRule combines with the stored one.
type ListOp int

const (
	// ListOverwrite replaces the stored list.
	ListOverwrite ListOp = iota
	// ListAppend adds to the end of the stored list.
	ListAppend
)

// AlertRuleUpdate lists the changes applied by UpdateAlertRule. Zero fields
// keep the stored value.
type AlertRuleUpdate struct {
	Name            string
	Description     string
	Query           string
	PollingInterval string
	Severity        string
	Tags            []string
	TagsOp          ListOp
	Labels          []AlertRuleLabel
	// ActionConfigs never replace the first action, which sets the severity.
	ActionConfigs   []map[string]any
	ActionConfigsOp ListOp
	ResourceGroupID string
}

// ListAlertRules returns every alert rule instance of the account.
func (c *Client) ListAlertRules(ctx context.Context) ([]json.RawMessage, error) {
	rules, err := c.listConnection(ctx, "list_alert_rules", j1ql.ListRuleInstances, "listRuleInstances", "questionInstances", nil)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	return rules, nil
}

// GetAlertRule returns one alert rule. The API has no single-rule query, so
// the full list is fetched and searched. A missing rule yields ErrNotFound.
func (c *Client) GetAlertRule(ctx context.Context, ruleID string) (*AlertRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("alert rule id is required")
	}
	raw, err := c.ListAlertRules(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := j1ql.DecodeRecords[AlertRule](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", j1ql.ErrMalformedResponse, err)
	}
	rule, ok := lo.Find(rules, func(r AlertRule) bool { return r.ID == ruleID })
	if !ok {
		return nil, fmt.Errorf("alert rule %s: %w", ruleID, ErrNotFound)
	}
	return &rule, nil
}

// CreateAlertRule creates an alert rule from a single J1QL query.
func (c *Client) CreateAlertRule(ctx context.Context, input AlertRuleInput) (*AlertRule, error) {
	if input.Name == "" || input.Query == "" {
		return nil, fmt.Errorf("alert rule name and query are required")
	}

	actions := []map[string]any{
		{"type": "SET_PROPERTY", "targetProperty": "alertLevel", "targetValue": input.Severity},
		{"type": "CREATE_ALERT"},
	}
	actions = append(actions, input.ActionConfigs...)

	instance := map[string]any{
		"name":                            input.Name,
		"description":                     input.Description,
		"notifyOnFailure":                 true,
		"triggerActionsOnNewEntitiesOnly": true,
		"ignorePreviousResults":           false,
		"operations": []map[string]any{{
			"when": map[string]any{
				"type":      "FILTER",
				"condition": []any{"AND", []any{"queries.query0.total", ">", 0}},
			},
			"actions": actions,
		}},
		"outputs":         []string{"alertLevel"},
		"pollingInterval": input.PollingInterval,
		"question": AlertRuleQuestion{Queries: []AlertRuleQuery{
			{Query: input.Query, Name: "query0", Version: "v1"},
		}},
		"specVersion":     1,
		"tags":            lo.Ternary(input.Tags == nil, []string{}, input.Tags),
		"labels":          lo.Ternary(input.Labels == nil, []AlertRuleLabel{}, input.Labels),
		"templates":       map[string]any{},
		"resourceGroupId": input.ResourceGroupID,
	}

	rule, err := graphQLField[AlertRule](ctx, c, "create_alert_rule", j1ql.CreateRuleInstance, "createInlineQuestionRuleInstance", map[string]any{"instance": instance})
	if err != nil {
		return nil, fmt.Errorf("create alert rule %q: %w", input.Name, err)
	}
	return &rule, nil
}

// UpdateAlertRule reads the stored rule, applies update and writes it back
// as the next version.
func (c *Client) UpdateAlertRule(ctx context.Context, ruleID string, update AlertRuleUpdate) (*AlertRule, error) {
	current, err := c.GetAlertRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	question := current.Question
	if update.Query != "" {
		if len(question.Queries) == 0 {
			return nil, fmt.Errorf("update alert rule %s: %w: rule has no query", ruleID, j1ql.ErrMalformedResponse)
		}
		question.Queries[0].Query = update.Query
	}

	tags := current.Tags
	switch {
	case update.Tags == nil:
	case update.TagsOp == ListAppend:
		tags = append(tags, update.Tags...)
	default:
		tags = update.Tags
	}

	operations := current.Operations
	if update.ActionConfigs != nil || update.Severity != "" {
		if len(operations) == 0 || len(operations[0].Actions) == 0 {
			return nil, fmt.Errorf("update alert rule %s: %w: rule has no actions", ruleID, j1ql.ErrMalformedResponse)
		}
	}
	if update.ActionConfigs != nil {
		if update.ActionConfigsOp == ListAppend {
			operations[0].Actions = append(operations[0].Actions, update.ActionConfigs...)
		} else {
			operations[0].Actions = append(operations[0].Actions[:1], update.ActionConfigs...)
		}
	}
	if update.Severity != "" {
		operations[0].Actions[0]["targetValue"] = update.Severity
	}

	instance := map[string]any{
		"id":              ruleID,
		"version":         current.Version + 1,
		"specVersion":     current.SpecVersion,
		"name":            lo.Ternary(update.Name != "", update.Name, current.Name),
		"description":     lo.Ternary(update.Description != "", update.Description, current.Description),
		"question":        question,
		"operations":      operations,
		"pollingInterval": lo.Ternary(update.PollingInterval != "", update.PollingInterval, current.PollingInterval),
		"tags":            tags,
		"labels":          lo.Ternary(update.Labels != nil, update.Labels, current.Labels),
		"resourceGroupId": lo.Ternary(update.ResourceGroupID != "", update.ResourceGroupID, current.ResourceGroupID),
	}

	rule, err := graphQLField[AlertRule](ctx, c, "update_alert_rule", j1ql.UpdateRuleInstance, "updateInlineQuestionRuleInstance", map[string]any{"instance": instance})
	if err != nil {
		return nil, fmt.Errorf("update alert rule %s: %w", ruleID, err)
	}
	return &rule, nil
}

// DeleteAlertRule deletes an alert rule.
func (c *Client) DeleteAlertRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("alert rule id is required")
	}
	if _, err := graphQLField[GraphObjectRef](ctx, c, "delete_alert_rule", j1ql.DeleteRuleInstance, "deleteRuleInstance", map[string]any{"id": ruleID}); err != nil {
		return fmt.Errorf("delete alert rule %s: %w", ruleID, err)
	}
	return nil
}

// EvaluateAlertRule starts an evaluation of a rule and returns its outputs.
func (c *Client) EvaluateAlertRule(ctx context.Context, ruleID string) (json.RawMessage, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("alert rule id is required")
	}
	result, err := graphQLField[json.RawMessage](ctx, c, "evaluate_alert_rule", j1ql.EvaluateRuleInstance, "evaluateRuleInstance", map[string]any{"id": ruleID})
	if err != nil {
		return nil, fmt.Errorf("evaluate alert rule %s: %w", ruleID, err)
	}
	return result, nil
}

// ListAlertRuleEvaluationResults returns every stored evaluation of a rule up
// to now. Each result's rawDataDescriptors carry the keys accepted by
// FetchEvaluationResultDownloadURL.
func (c *Client) ListAlertRuleEvaluationResults(ctx context.Context, ruleID string) ([]json.RawMessage, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("alert rule id is required")
	}
	variables := map[string]any{
		"collectionType":    "RULE_EVALUATION",
		"collectionOwnerId": ruleID,
		"beginTimestamp":    0,
		"endTimestamp":      time.Now().UnixMilli(),
		"limit":             evaluationResultsLimit,
	}
	results, err := c.listConnection(ctx, "list_evaluation_results", j1ql.ListCollectionResults, "listCollectionResults", "results", variables)
	if err != nil {
		return nil, fmt.Errorf("list evaluation results of %s: %w", ruleID, err)
	}
	return results, nil
}

// FetchEvaluationResultDownloadURL returns a pre-signed URL for the raw data
// of an evaluation result.
func (c *Client) FetchEvaluationResultDownloadURL(ctx context.Context, rawDataKey string) (string, error) {
	if rawDataKey == "" {
		return "", fmt.Errorf("raw data key is required")
	}
	url, err := graphQLField[string](ctx, c, "evaluation_download_url", j1ql.GetRawDataDownloadURL, "getRawDataDownloadUrl", map[string]any{"rawDataKey": rawDataKey})
	if err != nil {
		return "", fmt.Errorf("fetch download url for %s: %w", rawDataKey, err)
	}
	return url, nil
}

// FetchDownloadedEvaluationResults downloads the JSON document behind a URL
// returned by FetchEvaluationResultDownloadURL. The URL is pre-signed, so the
// request carries no credentials.
func (c *Client) FetchDownloadedEvaluationResults(ctx context.Context, downloadURL string) (json.RawMessage, error) {
	if downloadURL == "" {
		return nil, fmt.Errorf("download url is required")
	}
	body, err := c.transport.Do(ctx, Request{
		Operation: "evaluation_download",
		Method:    http.MethodGet,
		URL:       downloadURL,
		Retry:     c.config.Retry,
		Anonymous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("download evaluation results: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("download evaluation results: %w: body is not JSON", j1ql.ErrMalformedResponse)
	}
	return body, nil
}
