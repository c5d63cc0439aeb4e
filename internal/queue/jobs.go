package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessDocumentTask is scheduled each time processing is requested for
	// a document.
	ProcessDocumentTask = "document:process"
)

// ProcessPayload is serialized into the task payload so the worker knows
// which document to run the pipeline for.
type ProcessPayload struct {
	DocumentID string `json:"document_id"`
}

// EnqueueProcess enqueues a processing job. A failed attempt ends in a
// terminal error status on the document, so the task is not retried; a fresh
// process request re-enqueues it.
func EnqueueProcess(ctx context.Context, client *asynq.Client, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessDocumentTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
