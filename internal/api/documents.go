package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/osoriodev/ragbase/internal/model"
)

type createDocumentRequest struct {
	FileName    string         `json:"file_name"`
	FileType    string         `json:"file_type"`
	StoragePath string         `json:"storage_path"`
	Metadata    map[string]any `json:"metadata"`
}

// handleCreateDocument registers file metadata without touching the physical
// bytes. The document starts in status uploaded.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileName == "" {
		respondError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	if _, err := s.limiter.CheckDocumentLimit(r.Context(), tenant.CompanyID); err != nil {
		respondDomainError(w, err)
		return
	}

	fileType := strings.ToLower(req.FileType)
	if fileType == "" {
		fileType = typeFromName(req.FileName)
	}
	doc := &model.Document{
		ID:          uuid.NewString(),
		CompanyID:   tenant.CompanyID,
		FileName:    req.FileName,
		FileType:    fileType,
		StoragePath: req.StoragePath,
		Metadata:    req.Metadata,
	}
	if err := s.docs.Create(r.Context(), doc); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	docs, err := s.docs.ListByCompany(r.Context(), tenant.CompanyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

type updateDocumentRequest struct {
	FileName *string               `json:"file_name"`
	Metadata map[string]any        `json:"metadata"`
	Status   *model.DocumentStatus `json:"status"`
}

// documentResponse augments a document with the unauthenticated URL of its
// stored bytes.
type documentResponse struct {
	*model.Document
	DownloadURL string `json:"download_url,omitempty"`
}

func (s *Server) newDocumentResponse(doc *model.Document) documentResponse {
	resp := documentResponse{Document: doc}
	if doc.StoragePath != "" {
		resp.DownloadURL = s.store.PublicURL(doc.StoragePath)
	}
	return resp
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, id string) {
	tenant := tenantFrom(r)
	switch r.Method {
	case http.MethodGet:
		doc, err := s.docs.GetForCompany(r.Context(), id, tenant.CompanyID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.newDocumentResponse(doc))
	case http.MethodPut:
		var req updateDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		doc, err := s.docs.Update(r.Context(), id, tenant.CompanyID, req.FileName, req.Metadata, req.Status)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		doc, err := s.docs.GetForCompany(r.Context(), id, tenant.CompanyID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if err := s.docs.Delete(r.Context(), id, tenant.CompanyID); err != nil {
			respondDomainError(w, err)
			return
		}
		// The database row is gone; a leftover blob is not worth failing the
		// request over.
		if doc.StoragePath != "" {
			if err := s.store.Delete(r.Context(), doc.StoragePath); err != nil {
				s.log.Warn().Str("document_id", id).Err(err).Msg("blob delete failed")
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProcess dispatches the processing pipeline for a tenant's document
// and acknowledges immediately. Callers poll the document status to observe
// completion.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := tenantFrom(r)
	if _, err := s.docs.GetForCompany(r.Context(), id, tenant.CompanyID); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.dispatcher.Dispatch(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to queue processing")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Document processing started"})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := tenantFrom(r)
	if _, err := s.docs.GetForCompany(r.Context(), id, tenant.CompanyID); err != nil {
		respondDomainError(w, err)
		return
	}
	chunks, err := s.chunks.ListByDocument(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	// The count comes from its own query so the response total reflects the
	// persisted rows, the same figure chunk_count caches on the document.
	total, err := s.chunks.CountByDocument(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chunksResponse{
		DocumentID:  id,
		Chunks:      chunks,
		TotalChunks: total,
	})
}

type chunksResponse struct {
	DocumentID  string        `json:"document_id"`
	Chunks      []model.Chunk `json:"chunks"`
	TotalChunks int           `json:"total_chunks"`
}

// handleUpload stores the physical bytes, registers the document, and kicks
// off processing in the background.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	tenant := tenantFrom(r)

	if _, err := s.limiter.CheckDocumentLimit(ctx, tenant.CompanyID); err != nil {
		respondDomainError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field missing")
		return
	}
	defer part.Close()
	tmp, err := s.persistTemp(part)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()

	docID := uuid.NewString()
	fileType := typeFromName(tmp.filename)
	storagePath := fmt.Sprintf("companies/%s/%s%s", tenant.CompanyID, docID, filepath.Ext(tmp.filename))
	if err := s.uploadToStorage(ctx, storagePath, tmp); err != nil {
		s.log.Error().Err(err).Msg("upload to storage failed")
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc := &model.Document{
		ID:          docID,
		CompanyID:   tenant.CompanyID,
		FileName:    tmp.filename,
		FileType:    fileType,
		StoragePath: storagePath,
		Metadata:    map[string]any{"content_type": tmp.contentType, "file_size": tmp.size},
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store metadata")
		return
	}
	if err := s.dispatcher.Dispatch(ctx, docID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to queue processing")
		return
	}
	respondJSON(w, http.StatusAccepted, s.newDocumentResponse(doc))
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

// persistTemp streams the multipart part to a temp file while enforcing the
// size limit and sniffing the content type from the first bytes.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "ragbase-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				cleanup()
				return nil, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				cleanup()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			cleanup()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		cleanup()
		return nil, errors.New("empty file")
	}
	if _, err := tmpFile.Seek(0, 0); err != nil {
		cleanup()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	filename := part.FileName()
	if filename == "" {
		filename = "upload"
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
		filename:    filename,
	}, nil
}

func (s *Server) uploadToStorage(ctx context.Context, storagePath string, tmp *tempUpload) error {
	if _, err := tmp.f.Seek(0, 0); err != nil {
		return err
	}
	return s.store.Upload(ctx, storagePath, tmp.f, tmp.size, tmp.contentType)
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

// typeFromName derives the lower-cased file type from the file extension.
func typeFromName(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
