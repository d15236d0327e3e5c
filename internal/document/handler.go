package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"writingstuff/internal/document/model"
	"writingstuff/internal/document/service"
	"writingstuff/middleware"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"
)

const (
	// multipartOverhead covers part headers and boundaries around the file.
	multipartOverhead = 1 << 20
	maxRequestBody    = 1 << 20
)

type DocumentHandler struct {
	Service        *service.DocumentService
	MaxUploadBytes int64
}

func NewDocumentHandler(service *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{Service: service, MaxUploadBytes: maxUploadBytes}
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	docs, err := h.Service.List(r.Context(), userID)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	out := make([]model.DocumentInfo, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].Info())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.CreateDocRequest
	if err := decodeJSON(w, r, &req, maxRequestBody); err != nil && !errors.Is(err, io.EOF) {
		apperror.Write(w, err)
		return
	}

	doc, err := h.Service.Create(r.Context(), userID, req.Title)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc.Response())
}

// UploadDocument reads the "file" part of a multipart form. An
// Idempotency-Key header makes retries of the same upload safe.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)

	filename, data, err := h.readFile(r)
	if err != nil {
		apperror.Write(w, err)
		return
	}

	doc, err := h.Service.Upload(r.Context(), userID, filename, data, r.Header.Get("Idempotency-Key"))
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Info())
}

func (h *DocumentHandler) readFile(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return "", nil, fmt.Errorf("expected a multipart form with a file field: %w", apperror.ErrInvalidArgument)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("invalid multipart body: %w", apperror.ErrInvalidArgument)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, fmt.Errorf("missing file field: %w", apperror.ErrInvalidArgument)
		}
		if err != nil {
			return "", nil, bodyError(err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, h.MaxUploadBytes+1))
		part.Close()
		if err != nil {
			return "", nil, bodyError(err)
		}
		if int64(len(data)) > h.MaxUploadBytes {
			return "", nil, fmt.Errorf("file exceeds %d bytes: %w", h.MaxUploadBytes, apperror.ErrTooLarge)
		}
		return part.FileName(), data, nil
	}
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	doc, err := h.Service.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	setVersion(w, doc.Version)
	writeJSON(w, http.StatusOK, doc.Response())
}

func (h *DocumentHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	doc, body, err := h.Service.File(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	setVersion(w, doc.Version)
	if _, err := io.Copy(w, body); err != nil {
		logger.Sugar.Warnf("Streaming file of %s interrupted: %v", doc.ID, err)
	}
}

func (h *DocumentHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.SaveDocRequest
	if err := decodeJSON(w, r, &req, h.MaxUploadBytes); err != nil {
		apperror.Write(w, err)
		return
	}
	if req.Content == nil {
		apperror.Write(w, fmt.Errorf("content is required: %w", apperror.ErrInvalidArgument))
		return
	}

	doc, err := h.Service.Save(r.Context(), r.PathValue("id"), userID, *req.Content)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	setVersion(w, doc.Version)
	writeJSON(w, http.StatusOK, doc.Response())
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := h.Service.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		apperror.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ImproveText(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.ImproveRequest
	if err := decodeJSON(w, r, &req, h.MaxUploadBytes); err != nil {
		apperror.Write(w, err)
		return
	}

	text, err := h.Service.Improve(r.Context(), r.PathValue("id"), userID, req.Text, req.Style)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ImproveResponse{Text: text})
}

func (h *DocumentHandler) SearchDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.SearchRequest
	if err := decodeJSON(w, r, &req, maxRequestBody); err != nil {
		apperror.Write(w, err)
		return
	}

	hits, version, err := h.Service.Search(r.Context(), r.PathValue("id"), userID, req.Query, req.Limit)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	setVersion(w, version)
	writeJSON(w, http.StatusOK, hits)
}

func (h *DocumentHandler) SummarizeDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	result, err := h.Service.Summarize(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	setVersion(w, result.Version)
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body: %w", errors.Join(apperror.ErrInvalidArgument, io.EOF))
		}
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, apperror.ErrTooLarge)
	}
	return fmt.Errorf("invalid request body: %w", apperror.ErrInvalidArgument)
}

func setVersion(w http.ResponseWriter, version int64) {
	w.Header().Set("X-Document-Version", strconv.FormatInt(version, 10))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
