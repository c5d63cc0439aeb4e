package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoriodev/ragbase/internal/chunker"
	"github.com/osoriodev/ragbase/internal/model"
)

type fakeDocs struct {
	docs    map[string]*model.Document
	history map[string][]model.DocumentStatus
	lastErr map[string]string
}

func newFakeDocs(docs ...*model.Document) *fakeDocs {
	f := &fakeDocs{
		docs:    map[string]*model.Document{},
		history: map[string][]model.DocumentStatus{},
		lastErr: map[string]string{},
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocs) Get(_ context.Context, id string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, model.ErrDocumentNotFound
	}
	copy := *doc
	return &copy, nil
}

func (f *fakeDocs) SetStatus(_ context.Context, id string, status model.DocumentStatus) error {
	doc, ok := f.docs[id]
	if !ok {
		return model.ErrDocumentNotFound
	}
	doc.Status = status
	f.history[id] = append(f.history[id], status)
	return nil
}

func (f *fakeDocs) MarkError(_ context.Context, id, message string) error {
	doc, ok := f.docs[id]
	if !ok {
		return model.ErrDocumentNotFound
	}
	doc.Status = model.StatusError
	f.history[id] = append(f.history[id], model.StatusError)
	f.lastErr[id] = message
	return nil
}

func (f *fakeDocs) MarkProcessed(_ context.Context, id string, chunkCount int) error {
	doc, ok := f.docs[id]
	if !ok {
		return model.ErrDocumentNotFound
	}
	doc.Status = model.StatusProcessed
	doc.ChunkCount = chunkCount
	f.history[id] = append(f.history[id], model.StatusProcessed)
	return nil
}

type fakeChunks struct {
	byDocument map[string][]model.Chunk
	batches    []int
	insertErr  error
}

func newFakeChunks() *fakeChunks {
	return &fakeChunks{byDocument: map[string][]model.Chunk{}}
}

func (f *fakeChunks) InsertBatch(_ context.Context, chunks []model.Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.batches = append(f.batches, len(chunks))
	for _, c := range chunks {
		f.byDocument[c.DocumentID] = append(f.byDocument[c.DocumentID], c)
	}
	return nil
}

func (f *fakeChunks) DeleteByDocument(_ context.Context, documentID string) error {
	delete(f.byDocument, documentID)
	return nil
}

type fakeBlobs struct {
	objects map[string][]byte
	err     error
}

func (f *fakeBlobs) Download(_ context.Context, storagePath string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[storagePath]
	if !ok {
		return nil, fmt.Errorf("%w: object missing", model.ErrStorageUnavailable)
	}
	return data, nil
}

// fakeExtractor treats the bytes themselves as the extracted text.
type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Supported(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "pdf", "docx", "doc":
		return true
	}
	return false
}

func (f *fakeExtractor) Extract(data []byte, fileType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(data), nil
}

func newProcessor(docs *fakeDocs, chunks *fakeChunks, blobs *fakeBlobs, ex *fakeExtractor) *Processor {
	return New(docs, chunks, blobs, ex,
		chunker.New(chunker.WithChunkSize(20)), zerolog.Nop())
}

func uploadedDoc(id, fileType string) *model.Document {
	return &model.Document{
		ID:          id,
		CompanyID:   "company-1",
		FileName:    "report." + fileType,
		FileType:    fileType,
		StoragePath: "companies/company-1/" + id,
		Status:      model.StatusUploaded,
	}
}

func TestProcessDocumentNotFound(t *testing.T) {
	docs := newFakeDocs()
	p := newProcessor(docs, newFakeChunks(), &fakeBlobs{}, &fakeExtractor{})

	_, err := p.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)
	assert.Empty(t, docs.history)
}

func TestProcessInvalidFileType(t *testing.T) {
	doc := uploadedDoc("doc-1", "xyz")
	docs := newFakeDocs(doc)
	p := newProcessor(docs, newFakeChunks(), &fakeBlobs{}, &fakeExtractor{})

	_, err := p.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	assert.Equal(t, model.StatusError, doc.Status)
	assert.Contains(t, docs.lastErr["doc-1"], "Invalid file type")
	// The bad input must never be observed in progress.
	assert.NotContains(t, docs.history["doc-1"], model.StatusProcessing)
}

func TestProcessHappyPath(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	chunks := newFakeChunks()
	blobs := &fakeBlobs{objects: map[string][]byte{
		doc.StoragePath: []byte(strings.Repeat("alpha beta gamma ", 20)),
	}}
	p := newProcessor(docs, chunks, blobs, &fakeExtractor{})

	result, err := p.Process(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []model.DocumentStatus{model.StatusProcessing, model.StatusProcessed}, docs.history["doc-1"])
	assert.Equal(t, model.StatusProcessed, doc.Status)

	persisted := chunks.byDocument["doc-1"]
	require.NotEmpty(t, persisted)
	assert.Equal(t, len(persisted), result.ChunkCount)
	assert.Equal(t, len(persisted), doc.ChunkCount)
	for i, c := range persisted {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.NotEmpty(t, c.ID)
		assert.Nil(t, c.EmbeddingID)
		assert.Contains(t, c.Metadata, "start_char")
		assert.Contains(t, c.Metadata, "end_char")
	}
}

func TestProcessStorageFailure(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	blobs := &fakeBlobs{err: fmt.Errorf("%w: connection refused", model.ErrStorageUnavailable)}
	p := newProcessor(docs, newFakeChunks(), blobs, &fakeExtractor{})

	_, err := p.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStorageUnavailable)
	assert.Equal(t, model.StatusError, doc.Status)
	assert.Contains(t, docs.lastErr["doc-1"], "connection refused")
	assert.Equal(t, []model.DocumentStatus{model.StatusProcessing, model.StatusError}, docs.history["doc-1"])
}

func TestProcessExtractionFailure(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	blobs := &fakeBlobs{objects: map[string][]byte{doc.StoragePath: []byte("garbage")}}
	ex := &fakeExtractor{err: fmt.Errorf("%w: bad xref", model.ErrExtractionFailed)}
	p := newProcessor(docs, newFakeChunks(), blobs, ex)

	_, err := p.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExtractionFailed)
	assert.Equal(t, model.StatusError, doc.Status)
}

func TestProcessInsertFailureMarksError(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	chunks := newFakeChunks()
	chunks.insertErr = errors.New("insert chunks: connection reset")
	blobs := &fakeBlobs{objects: map[string][]byte{doc.StoragePath: []byte("some words here")}}
	p := newProcessor(docs, chunks, blobs, &fakeExtractor{})

	_, err := p.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.Equal(t, model.StatusError, doc.Status)
	assert.Contains(t, docs.lastErr["doc-1"], "connection reset")
}

func TestProcessBatchesInserts(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	chunks := newFakeChunks()
	// With size 20, 130 distinct words make well over 50 chunks.
	var sb strings.Builder
	for i := 0; i < 130; i++ {
		fmt.Fprintf(&sb, "wordnumber%04d onemore ", i)
	}
	blobs := &fakeBlobs{objects: map[string][]byte{doc.StoragePath: []byte(sb.String())}}
	p := newProcessor(docs, chunks, blobs, &fakeExtractor{})

	result, err := p.Process(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Greater(t, result.ChunkCount, chunkBatchSize)
	require.Greater(t, len(chunks.batches), 1)
	for _, size := range chunks.batches {
		assert.LessOrEqual(t, size, chunkBatchSize)
	}
}

func TestReprocessReplacesChunks(t *testing.T) {
	doc := uploadedDoc("doc-1", "pdf")
	docs := newFakeDocs(doc)
	chunks := newFakeChunks()
	blobs := &fakeBlobs{objects: map[string][]byte{
		doc.StoragePath: []byte("one two three four five six seven eight"),
	}}
	p := newProcessor(docs, chunks, blobs, &fakeExtractor{})

	first, err := p.Process(context.Background(), "doc-1")
	require.NoError(t, err)
	second, err := p.Process(context.Background(), "doc-1")
	require.NoError(t, err)

	// Clean replace: same input, same chunk count, no duplicate rows.
	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.Len(t, chunks.byDocument["doc-1"], second.ChunkCount)
	assert.Equal(t, second.ChunkCount, doc.ChunkCount)
}
