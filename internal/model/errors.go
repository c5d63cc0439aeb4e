package model

import "errors"

// Sentinel errors for the failure taxonomy. Callers compare with errors.Is;
// wrapped variants carry the underlying cause.
var (
	// ErrDocumentNotFound covers both an absent document and one owned by a
	// different tenant. The two cases must stay indistinguishable to avoid
	// leaking existence across tenants.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnsupportedFileType is returned for declared file types the
	// extractor cannot handle.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrExtractionFailed covers corrupt bytes and decode errors for a
	// supported file type.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrStorageUnavailable is returned when the blob store cannot serve a
	// download for a known storage path.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNoActiveSubscription means the company has no subscription at all.
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrLimitReached means the company's document quota is exhausted.
	ErrLimitReached = errors.New("document limit reached for current subscription")

	// ErrAnswerGeneration is returned when the LLM collaborator fails.
	ErrAnswerGeneration = errors.New("answer generation failed")
)
