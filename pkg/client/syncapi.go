package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const syncJobsPath = "/persister/synchronization/jobs"

// SyncMode is the syncMode of a synchronization job.
type SyncMode string

const (
	SyncModeDiff           SyncMode = "DIFF"
	SyncModeCreateOrUpdate SyncMode = "CREATE_OR_UPDATE"
	SyncModePatch          SyncMode = "PATCH"
)

// SyncJobOptions configures StartSyncJob.
type SyncJobOptions struct {
	// Source is "api" or "integration-external". Defaults to "api".
	Source   string
	SyncMode SyncMode
	// IntegrationInstanceID scopes the job to an integration instance.
	IntegrationInstanceID string
}

// SyncJob is the state of a synchronization job.
type SyncJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
	// Raw holds the full job document.
	Raw json.RawMessage `json:"-"`
}

// executeSync posts a JSON payload to the synchronization API.
func (c *Client) executeSync(ctx context.Context, operation, path string, payload any) ([]byte, error) {
	return c.transport.Do(ctx, Request{
		Operation: operation,
		Method:    http.MethodPost,
		URL:       c.config.SyncURL + path,
		Body:      payload,
		Retry:     c.config.Retry,
	})
}

func decodeSyncJob(body []byte) (*SyncJob, error) {
	var resp struct {
		Job json.RawMessage `json:"job"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode sync job: %v", j1ql.ErrMalformedResponse, err)
	}
	if len(resp.Job) == 0 || string(resp.Job) == "null" {
		return nil, fmt.Errorf("%w: response has no job", j1ql.ErrMalformedResponse)
	}
	var job SyncJob
	if err := json.Unmarshal(resp.Job, &job); err != nil {
		return nil, fmt.Errorf("%w: decode sync job: %v", j1ql.ErrMalformedResponse, err)
	}
	job.Raw = resp.Job
	return &job, nil
}

func jobPath(jobID, action string) string {
	return syncJobsPath + "/" + url.PathEscape(jobID) + "/" + action
}

// StartSyncJob starts a synchronization job.
func (c *Client) StartSyncJob(ctx context.Context, opts SyncJobOptions) (*SyncJob, error) {
	if opts.SyncMode == "" {
		return nil, fmt.Errorf("sync mode is required")
	}
	payload := map[string]any{
		"source":   lo.Ternary(opts.Source == "", "api", opts.Source),
		"syncMode": opts.SyncMode,
	}
	if opts.IntegrationInstanceID != "" {
		payload["integrationInstanceId"] = opts.IntegrationInstanceID
	}

	body, err := c.executeSync(ctx, "sync_start", syncJobsPath, payload)
	if err != nil {
		return nil, fmt.Errorf("start sync job: %w", err)
	}
	return decodeSyncJob(body)
}

// UploadEntitiesBatch uploads one batch of entities to a job.
func (c *Client) UploadEntitiesBatch(ctx context.Context, jobID string, entities []map[string]any) error {
	if _, err := c.executeSync(ctx, "sync_upload_entities", jobPath(jobID, "entities"), map[string]any{"entities": entities}); err != nil {
		return fmt.Errorf("upload %d entities to job %s: %w", len(entities), jobID, err)
	}
	return nil
}

// UploadRelationshipsBatch uploads one batch of relationships to a job.
func (c *Client) UploadRelationshipsBatch(ctx context.Context, jobID string, relationships []map[string]any) error {
	if _, err := c.executeSync(ctx, "sync_upload_relationships", jobPath(jobID, "relationships"), map[string]any{"relationships": relationships}); err != nil {
		return fmt.Errorf("upload %d relationships to job %s: %w", len(relationships), jobID, err)
	}
	return nil
}

// CombinedBatch is a payload of entities and relationships uploaded together.
type CombinedBatch struct {
	Entities      []map[string]any `json:"entities,omitempty"`
	Relationships []map[string]any `json:"relationships,omitempty"`
}

// UploadCombinedBatch uploads entities and relationships in one request.
func (c *Client) UploadCombinedBatch(ctx context.Context, jobID string, batch CombinedBatch) error {
	if _, err := c.executeSync(ctx, "sync_upload", jobPath(jobID, "upload"), batch); err != nil {
		return fmt.Errorf("upload combined batch to job %s: %w", jobID, err)
	}
	return nil
}

// BulkDeleteEntities deletes the entities with the given _ids through a job.
func (c *Client) BulkDeleteEntities(ctx context.Context, jobID string, entityIDs []string) error {
	refs := lo.Map(entityIDs, func(id string, _ int) GraphObjectRef {
		return GraphObjectRef{ID: id}
	})
	if _, err := c.executeSync(ctx, "sync_delete_entities", jobPath(jobID, "upload"), map[string]any{"deleteEntities": refs}); err != nil {
		return fmt.Errorf("delete %d entities through job %s: %w", len(entityIDs), jobID, err)
	}
	return nil
}

// FinalizeSyncJob finalizes a job so the uploaded data is processed.
func (c *Client) FinalizeSyncJob(ctx context.Context, jobID string) (*SyncJob, error) {
	body, err := c.executeSync(ctx, "sync_finalize", jobPath(jobID, "finalize"), map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("finalize sync job %s: %w", jobID, err)
	}
	return decodeSyncJob(body)
}

// UploadEntitiesInBatches splits entities into batches of batchSize and
// uploads them with at most concurrency requests in flight. It returns the
// number of entities uploaded before the first failure.
func (c *Client) UploadEntitiesInBatches(ctx context.Context, jobID string, entities []map[string]any, batchSize, concurrency int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be >= 1 (got %d)", batchSize)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, batch := range lo.Chunk(entities, batchSize) {
		g.Go(func() error {
			if err := c.UploadEntitiesBatch(gctx, jobID, batch); err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			uploaded.Add(int64(len(batch)))
			return nil
		})
	}

	err := g.Wait()
	c.logger.Info().
		Str("operation", "sync_upload_entities").
		Str("job_id", jobID).
		Int("records", len(entities)).
		Int64("uploaded", uploaded.Load()).
		Msg("Entity batch upload finished")
	return int(uploaded.Load()), err
}
