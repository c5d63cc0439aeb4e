// Package model contains the canonical entity definitions shared across
// packages. Every entity is owned by exactly one company; the company id is
// the tenant-scoping key for all reads and writes.
package model

import (
	"time"
)

// DocumentStatus describes the processing lifecycle of a document.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

// Document represents a row in the documents table. Status is the
// authoritative progress marker; ChunkCount is a derived cache that must equal
// the actual number of chunk rows once Status reaches StatusProcessed.
type Document struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"company_id"`
	FileName    string         `json:"file_name"`
	FileType    string         `json:"file_type"`
	StoragePath string         `json:"storage_path"`
	Metadata    map[string]any `json:"metadata"`
	Status      DocumentStatus `json:"status"`
	ChunkCount  int            `json:"chunk_count"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Chunk is a bounded slice of a document's extracted text, the unit of
// retrieval. Chunks are created in a single processing pass and never mutated
// afterward; they cannot outlive their document.
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Index      int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	// EmbeddingID is reserved for a future vector store reference. No
	// embedding is computed today, so it is always nil.
	EmbeddingID *string   `json:"embedding_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
