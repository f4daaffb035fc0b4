package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

// GraphObjectRef identifies an entity or relationship by its _id.
type GraphObjectRef struct {
	ID string `json:"_id"`
}

// EntityInput describes an entity to create.
type EntityInput struct {
	Key   string
	Type  string
	Class []string
	// Timestamp in milliseconds since the epoch. Zero lets the server decide.
	Timestamp  int64
	Properties map[string]any
}

// EntityResult is returned by the entity mutations.
type EntityResult struct {
	Entity GraphObjectRef  `json:"entity"`
	Vertex json.RawMessage `json:"vertex,omitempty"`
}

// graphQLField runs a single GraphQL request and decodes data.<field>.
func graphQLField[T any](ctx context.Context, c *Client, operation, document, field string, variables map[string]any) (T, error) {
	body, err := c.executeGraphQL(ctx, operation, document, variables, c.config.Retry)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeField[T](body, field)
}

// CreateEntity creates an entity.
func (c *Client) CreateEntity(ctx context.Context, input EntityInput) (*EntityResult, error) {
	if input.Key == "" || input.Type == "" || len(input.Class) == 0 {
		return nil, fmt.Errorf("entity key, type and class are required")
	}

	variables := map[string]any{
		"entityKey":   input.Key,
		"entityType":  input.Type,
		"entityClass": input.Class,
	}
	if input.Timestamp != 0 {
		variables["timestamp"] = input.Timestamp
	}
	if input.Properties != nil {
		variables["properties"] = input.Properties
	}

	result, err := graphQLField[EntityResult](ctx, c, "create_entity", j1ql.CreateEntity, "createEntity", variables)
	if err != nil {
		return nil, fmt.Errorf("create entity %q: %w", input.Key, err)
	}
	return &result, nil
}

// UpdateEntity replaces the given properties of an existing entity.
func (c *Client) UpdateEntity(ctx context.Context, entityID string, properties map[string]any) (*EntityResult, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	variables := map[string]any{
		"entityId":   entityID,
		"properties": properties,
	}
	result, err := graphQLField[EntityResult](ctx, c, "update_entity", j1ql.UpdateEntity, "updateEntity", variables)
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", entityID, err)
	}
	return &result, nil
}

// DeleteEntity deletes an entity by _id.
func (c *Client) DeleteEntity(ctx context.Context, entityID string) (*EntityResult, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	variables := map[string]any{"entityId": entityID}
	result, err := graphQLField[EntityResult](ctx, c, "delete_entity", j1ql.DeleteEntity, "deleteEntity", variables)
	if err != nil {
		return nil, fmt.Errorf("delete entity %s: %w", entityID, err)
	}
	return &result, nil
}

// FetchEntityRawData returns the raw integration data stored for an entity.
func (c *Client) FetchEntityRawData(ctx context.Context, entityID string) (json.RawMessage, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	variables := map[string]any{
		"entityId": entityID,
		"source":   "integration-managed",
	}
	data, err := graphQLField[json.RawMessage](ctx, c, "entity_raw_data", j1ql.GetEntityRawData, "entityRawDataLegacy", variables)
	if err != nil {
		return nil, fmt.Errorf("fetch raw data of entity %s: %w", entityID, err)
	}
	return data, nil
}
