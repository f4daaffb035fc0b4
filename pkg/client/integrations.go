package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/samber/lo"
)

// CustomIntegrationDefinitionID is the definition of custom integrations,
// used by CreateIntegrationInstance when no definition is given.
const CustomIntegrationDefinitionID = "8013680b-311a-4c2e-b53b-c8735fd97a5c"

// Page sizes of the integration list queries.
const (
	integrationInstancesLimit = 100
	integrationJobsSize       = 100
	integrationEventsSize     = 1000
)

// IntegrationInstance is a configured instance of an integration definition.
type IntegrationInstance struct {
	ID                            string                    `json:"id"`
	Name                          string                    `json:"name"`
	AccountID                     string                    `json:"accountId,omitempty"`
	Description                   string                    `json:"description"`
	IntegrationDefinitionID       string                    `json:"integrationDefinitionId"`
	PollingInterval               string                    `json:"pollingInterval"`
	PollingIntervalCronExpression *CronExpression           `json:"pollingIntervalCronExpression,omitempty"`
	Config                        map[string]any            `json:"config"`
	CollectorPoolID               *string                   `json:"collectorPoolId,omitempty"`
	IngestionSourcesOverrides     []IngestionSourceOverride `json:"ingestionSourcesOverrides,omitempty"`
}

// CronExpression schedules polling at a fixed hour and weekday.
type CronExpression struct {
	Hour      *int `json:"hour,omitempty"`
	DayOfWeek *int `json:"dayOfWeek,omitempty"`
}

// IngestionSourceOverride enables or disables one ingestion source.
type IngestionSourceOverride struct {
	SourceID string `json:"sourceId"`
	Enabled  bool   `json:"enabled"`
}

// CreateIntegrationInstance creates an instance with polling disabled.
// An empty definitionID selects CustomIntegrationDefinitionID.
func (c *Client) CreateIntegrationInstance(ctx context.Context, name, description, definitionID string) (*IntegrationInstance, error) {
	if name == "" {
		return nil, fmt.Errorf("integration instance name is required")
	}
	instance := map[string]any{
		"name":                          name,
		"description":                   description,
		"integrationDefinitionId":       lo.Ternary(definitionID == "", CustomIntegrationDefinitionID, definitionID),
		"pollingInterval":               "DISABLED",
		"config":                        map[string]any{"@tag": map[string]any{"Production": false, "AccountName": true}},
		"pollingIntervalCronExpression": map[string]any{},
		"ingestionSourcesOverrides":     []any{},
	}

	created, err := graphQLField[IntegrationInstance](ctx, c, "create_integration_instance", j1ql.CreateInstance, "createIntegrationInstance", map[string]any{"instance": instance})
	if err != nil {
		return nil, fmt.Errorf("create integration instance %q: %w", name, err)
	}
	return &created, nil
}

// FetchIntegrationInstances returns every instance of an integration definition.
func (c *Client) FetchIntegrationInstances(ctx context.Context, definitionID string) ([]IntegrationInstance, error) {
	variables := map[string]any{
		"definitionId": definitionID,
		"limit":        integrationInstancesLimit,
	}
	items, err := c.listConnection(ctx, "list_integration_instances", j1ql.IntegrationInstances, "integrationInstancesV2", "instances", variables)
	if err != nil {
		return nil, fmt.Errorf("list integration instances of %s: %w", definitionID, err)
	}
	return j1ql.DecodeRecords[IntegrationInstance](items)
}

// GetIntegrationInstance returns the configuration of one instance.
func (c *Client) GetIntegrationInstance(ctx context.Context, instanceID string) (*IntegrationInstance, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("integration instance id is required")
	}
	instance, err := graphQLField[IntegrationInstance](ctx, c, "get_integration_instance", j1ql.IntegrationInstance, "integrationInstance", map[string]any{"integrationInstanceId": instanceID})
	if err != nil {
		return nil, fmt.Errorf("get integration instance %s: %w", instanceID, err)
	}
	return &instance, nil
}

// UpdateIntegrationInstanceConfigValue sets one existing config key of an
// instance and writes the instance back. A key absent from the stored config
// yields ErrNotFound and sends no update.
func (c *Client) UpdateIntegrationInstanceConfigValue(ctx context.Context, instanceID, key string, value any) (*IntegrationInstance, error) {
	current, err := c.GetIntegrationInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Config[key]; !ok {
		return nil, fmt.Errorf("config key %q of integration instance %s: %w", key, instanceID, ErrNotFound)
	}

	// externalId is server-managed and rejected in updates.
	config := lo.OmitByKeys(current.Config, []string{"externalId"})
	config[key] = value

	update := map[string]any{
		"name":                          current.Name,
		"description":                   current.Description,
		"pollingInterval":               current.PollingInterval,
		"pollingIntervalCronExpression": current.PollingIntervalCronExpression,
		"config":                        config,
		"collectorPoolId":               current.CollectorPoolID,
		"ingestionSourcesOverrides":     current.IngestionSourcesOverrides,
	}
	variables := map[string]any{"id": current.ID, "update": update}

	updated, err := graphQLField[IntegrationInstance](ctx, c, "update_integration_instance", j1ql.UpdateIntegrationInstance, "updateIntegrationInstance", variables)
	if err != nil {
		return nil, fmt.Errorf("update integration instance %s: %w", instanceID, err)
	}
	return &updated, nil
}

// FetchIntegrationJobs returns the jobs run by an integration instance.
func (c *Client) FetchIntegrationJobs(ctx context.Context, instanceID string) ([]json.RawMessage, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("integration instance id is required")
	}
	variables := map[string]any{
		"integrationInstanceId": instanceID,
		"size":                  integrationJobsSize,
	}
	jobs, err := c.listConnection(ctx, "list_integration_jobs", j1ql.IntegrationJobs, "integrationJobs", "jobs", variables)
	if err != nil {
		return nil, fmt.Errorf("list jobs of integration instance %s: %w", instanceID, err)
	}
	return jobs, nil
}

// FetchIntegrationJobEvents returns the events logged by one integration job.
func (c *Client) FetchIntegrationJobEvents(ctx context.Context, instanceID, jobID string) ([]json.RawMessage, error) {
	if instanceID == "" || jobID == "" {
		return nil, fmt.Errorf("integration instance id and job id are required")
	}
	variables := map[string]any{
		"integrationInstanceId": instanceID,
		"jobId":                 jobID,
		"size":                  integrationEventsSize,
	}
	events, err := c.listConnection(ctx, "list_integration_events", j1ql.IntegrationJobEvents, "integrationEvents", "events", variables)
	if err != nil {
		return nil, fmt.Errorf("list events of integration job %s: %w", jobID, err)
	}
	return events, nil
}

// GetIntegrationDefinition returns an integration definition, with its
// config fields, by integration type.
func (c *Client) GetIntegrationDefinition(ctx context.Context, integrationType string) (json.RawMessage, error) {
	if integrationType == "" {
		return nil, fmt.Errorf("integration type is required")
	}
	variables := map[string]any{
		"integrationType": integrationType,
		"includeConfig":   true,
	}
	definition, err := graphQLField[json.RawMessage](ctx, c, "get_integration_definition", j1ql.FindIntegrationDefinition, "findIntegrationDefinition", variables)
	if err != nil {
		return nil, fmt.Errorf("get integration definition %s: %w", integrationType, err)
	}
	return definition, nil
}
