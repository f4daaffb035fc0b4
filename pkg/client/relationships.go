package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/samber/lo"
)

// RelationshipInput describes a relationship to create.
type RelationshipInput struct {
	Key          string
	Type         string
	Class        string
	FromEntityID string
	ToEntityID   string
	Properties   map[string]any
}

// RelationshipResult is returned by the relationship mutations.
type RelationshipResult struct {
	Relationship GraphObjectRef  `json:"relationship"`
	Edge         json.RawMessage `json:"edge,omitempty"`
}

// CreateRelationship creates a relationship between two existing entities.
func (c *Client) CreateRelationship(ctx context.Context, input RelationshipInput) (*RelationshipResult, error) {
	if input.Key == "" || input.Type == "" || input.Class == "" {
		return nil, fmt.Errorf("relationship key, type and class are required")
	}
	if input.FromEntityID == "" || input.ToEntityID == "" {
		return nil, fmt.Errorf("relationship endpoints are required")
	}

	variables := map[string]any{
		"relationshipKey":   input.Key,
		"relationshipType":  input.Type,
		"relationshipClass": input.Class,
		"fromEntityId":      input.FromEntityID,
		"toEntityId":        input.ToEntityID,
	}
	if input.Properties != nil {
		variables["properties"] = input.Properties
	}

	result, err := graphQLField[RelationshipResult](ctx, c, "create_relationship", j1ql.CreateRelationship, "createRelationship", variables)
	if err != nil {
		return nil, fmt.Errorf("create relationship %q: %w", input.Key, err)
	}
	return &result, nil
}

// UpdateRelationship sets properties on an existing relationship.
func (c *Client) UpdateRelationship(ctx context.Context, relationshipID string, properties map[string]any) (*RelationshipResult, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("relationship id is required")
	}

	variables := map[string]any{
		"relationship": lo.Assign(properties, map[string]any{"_id": relationshipID}),
		"timestamp":    time.Now().UnixMilli(),
	}
	result, err := graphQLField[RelationshipResult](ctx, c, "update_relationship", j1ql.UpdateRelationshipV2, "updateRelationshipV2", variables)
	if err != nil {
		return nil, fmt.Errorf("update relationship %s: %w", relationshipID, err)
	}
	return &result, nil
}

// DeleteRelationship deletes a relationship by _id.
func (c *Client) DeleteRelationship(ctx context.Context, relationshipID string) (*RelationshipResult, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("relationship id is required")
	}

	variables := map[string]any{"relationshipId": relationshipID}
	result, err := graphQLField[RelationshipResult](ctx, c, "delete_relationship", j1ql.DeleteRelationship, "deleteRelationship", variables)
	if err != nil {
		return nil, fmt.Errorf("delete relationship %s: %w", relationshipID, err)
	}
	return &result, nil
}
