package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"writingstuff/internal/document/model"
	"writingstuff/internal/document/repository"
	"writingstuff/internal/enhance"
	"writingstuff/internal/pdf"
	"writingstuff/internal/search"
	"writingstuff/internal/storage"
	"writingstuff/internal/summary"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"
	"writingstuff/socket"

	"github.com/google/uuid"
)

const (
	MaxSearchLimit = 50
	staleRetries   = 3
)

// Notifier pushes document events to live sessions.
type Notifier interface {
	Notify(eventType, docID, userID string, version int64)
	RemoveDocument(docID string)
}

type Enqueuer interface {
	Enqueue(job IndexJob) bool
}

type Options struct {
	MaxUploadBytes int64
	SearchLimit    int
}

type DocumentService struct {
	Repo      repository.DocumentRepository
	Blobs     storage.BlobStore
	Indexes   *search.Engine
	Summaries *summary.Engine
	Enhancer  *enhance.Engine
	Events    Notifier
	Indexer   Enqueuer

	opts  Options
	locks *keyedMutex
}

func NewDocumentService(repo repository.DocumentRepository, blobs storage.BlobStore, searchEngine *search.Engine,
	summaries *summary.Engine, enhancer *enhance.Engine, events Notifier, opts Options) *DocumentService {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	return &DocumentService{
		Repo:      repo,
		Blobs:     blobs,
		Indexes:   searchEngine,
		Summaries: summaries,
		Enhancer:  enhancer,
		Events:    events,
		opts:      opts,
		locks:     newKeyedMutex(),
	}
}

// owned loads a document and checks that userID owns it. A missing document
// is reported before a foreign one.
func (s *DocumentService) owned(ctx context.Context, docID, userID string) (*model.Document, error) {
	doc, err := s.Repo.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}
	if doc.OwnerID != userID {
		return nil, fmt.Errorf("document %s: %w", docID, apperror.ErrForbidden)
	}
	return doc, nil
}

// Authorize lets the websocket hub admit only the owner of a document.
func (s *DocumentService) Authorize(ctx context.Context, docID, userID string) (string, error) {
	doc, err := s.owned(ctx, docID, userID)
	if err != nil {
		return "", err
	}
	return doc.Title, nil
}

// Upload stores a PDF and its extracted text. Repeating an upload with the
// same idempotency key returns the first document.
func (s *DocumentService) Upload(ctx context.Context, userID, filename string, data []byte, idempotencyKey string) (*model.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty: %w", apperror.ErrInvalidArgument)
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.opts.MaxUploadBytes, apperror.ErrTooLarge)
	}
	if !pdf.IsPDF(data) {
		return nil, fmt.Errorf("only PDF files are accepted: %w", apperror.ErrUnsupportedMediaType)
	}

	if idempotencyKey != "" {
		existing, err := s.Repo.FindByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
	}

	pages, err := pdf.ExtractPages(data)
	if err != nil {
		logger.Sugar.Warnf("No text extracted from %q: %v", filename, err)
		pages = nil
	}

	filename = cleanFilename(filename)
	docID := uuid.NewString()
	doc := &model.Document{
		ID:             docID,
		OwnerID:        userID,
		Title:          filename,
		Kind:           model.KindPDF,
		Filename:       filename,
		FileKey:        fmt.Sprintf("%s/%s.pdf", userID, docID),
		Content:        strings.Join(pages, model.PageSeparator),
		Size:           int64(len(data)),
		IdempotencyKey: idempotencyKey,
	}

	if err := s.Blobs.Put(ctx, doc.FileKey, data, "application/pdf"); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Blobs.Delete(context.WithoutCancel(ctx), doc.FileKey); delErr != nil {
			logger.Sugar.Warnf("Failed to remove orphaned file %s: %v", doc.FileKey, delErr)
		}
		if errors.Is(err, apperror.ErrConflict) && idempotencyKey != "" {
			return s.Repo.FindByIdempotencyKey(ctx, userID, idempotencyKey)
		}
		return nil, err
	}

	logger.Sugar.Infof("User %s uploaded %s (%d bytes, %d pages)", userID, doc.ID, doc.Size, len(pages))
	s.enqueue(doc.ID, doc.Version)
	return doc, nil
}

func cleanFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(name, ""))
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}

func (s *DocumentService) Create(ctx context.Context, userID, title string) (*model.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	doc := &model.Document{
		ID:      uuid.NewString(),
		OwnerID: userID,
		Title:   title,
		Kind:    model.KindText,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, docID, userID string) (*model.Document, error) {
	return s.owned(ctx, docID, userID)
}

// File opens the original upload. Text documents have none.
func (s *DocumentService) File(ctx context.Context, docID, userID string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.owned(ctx, docID, userID)
	if err != nil {
		return nil, nil, err
	}
	if doc.FileKey == "" {
		return nil, nil, fmt.Errorf("document %s has no file: %w", docID, apperror.ErrNotFound)
	}
	body, err := s.Blobs.Get(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open file of %s: %w", docID, err)
	}
	return doc, body, nil
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.Document, error) {
	return s.Repo.ListByOwner(ctx, userID)
}

// Save replaces the content and bumps the version. Saves on one document are
// applied one at a time.
func (s *DocumentService) Save(ctx context.Context, docID, userID, content string) (*model.Document, error) {
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("content is not valid UTF-8: %w", apperror.ErrInvalidArgument)
	}
	if strings.ContainsRune(content, 0) {
		return nil, fmt.Errorf("content contains NUL characters: %w", apperror.ErrInvalidArgument)
	}

	unlock := s.locks.Lock(docID)
	defer unlock()

	doc, err := s.owned(ctx, docID, userID)
	if err != nil {
		return nil, err
	}

	size := int64(len(content))
	if doc.Kind == model.KindPDF {
		size = doc.Size
	}
	version, updatedAt, err := s.Repo.UpdateContent(ctx, docID, content, size)
	if err != nil {
		return nil, fmt.Errorf("save document %s: %w", docID, err)
	}
	doc.Content, doc.Size, doc.Version, doc.UpdatedAt = content, size, version, updatedAt

	s.Indexes.Invalidate(docID, version)
	if err := s.Summaries.Invalidate(ctx, docID, version); err != nil {
		logger.Sugar.Warnf("Failed to invalidate summary of %s: %v", docID, err)
	}
	s.enqueue(docID, version)
	s.notify(socket.DocumentSavedType, docID, userID, version)
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, docID, userID string) error {
	unlock := s.locks.Lock(docID)
	defer unlock()

	doc, err := s.owned(ctx, docID, userID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}

	s.Indexes.Drop(docID)
	cleanup := context.WithoutCancel(ctx)
	if err := s.Summaries.Drop(cleanup, docID); err != nil {
		logger.Sugar.Warnf("Failed to drop summary of %s: %v", docID, err)
	}
	if doc.FileKey != "" {
		if err := s.Blobs.Delete(cleanup, doc.FileKey); err != nil {
			logger.Sugar.Warnf("Failed to delete file %s: %v", doc.FileKey, err)
		}
	}
	if s.Events != nil {
		s.Events.RemoveDocument(docID)
	}
	logger.Sugar.Infof("User %s deleted document %s", userID, docID)
	return nil
}

func (s *DocumentService) Improve(ctx context.Context, docID, userID, text, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is empty: %w", apperror.ErrInvalidArgument)
	}
	if _, err := s.owned(ctx, docID, userID); err != nil {
		return "", err
	}
	return s.Enhancer.Improve(ctx, text, style)
}

// Search returns ranked passages and the version they were computed from. An
// empty query is rejected before the document is looked at.
func (s *DocumentService) Search(ctx context.Context, docID, userID, query string, limit int) ([]search.Hit, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, fmt.Errorf("query is empty: %w", apperror.ErrInvalidArgument)
	}
	switch {
	case limit <= 0:
		limit = s.opts.SearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	for attempt := 0; ; attempt++ {
		doc, err := s.owned(ctx, docID, userID)
		if err != nil {
			return nil, 0, err
		}
		hits, err := s.query(ctx, doc, query, limit)
		if errors.Is(err, search.ErrStale) && attempt < staleRetries {
			// A save landed mid-search; reload and try the new version.
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		return hits, doc.Version, nil
	}
}

func (s *DocumentService) query(ctx context.Context, doc *model.Document, q string, limit int) ([]search.Hit, error) {
	idx, err := s.Indexes.Ensure(ctx, doc.ID, doc.Version, pages(doc))
	if err != nil {
		return nil, err
	}
	return idx.Query(ctx, q, limit)
}

// Summarize returns the summary of the current version. Text documents that
// were never written have nothing to summarize.
func (s *DocumentService) Summarize(ctx context.Context, docID, userID string) (summary.Result, error) {
	doc, err := s.owned(ctx, docID, userID)
	if err != nil {
		return summary.Result{}, err
	}
	if doc.Kind == model.KindText && strings.TrimSpace(doc.Content) == "" {
		return summary.Result{}, fmt.Errorf("document %s has no content: %w", docID, apperror.ErrNotFound)
	}

	r, err := s.Summaries.Summarize(ctx, doc.ID, doc.Version, strings.ReplaceAll(doc.Content, model.PageSeparator, "\n\n"))
	if err != nil {
		return summary.Result{}, err
	}
	s.notify(socket.SummaryReadyType, docID, userID, r.Version)
	return r, nil
}

// Reindex builds the search index for job if it still names the current
// version. It is the IndexWorker's job function.
func (s *DocumentService) Reindex(ctx context.Context, job IndexJob) error {
	doc, err := s.Repo.Get(ctx, job.DocID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if doc.Version != job.Version {
		logger.Sugar.Debugf("Skipping index job %s@%d, current version is %d", job.DocID, job.Version, doc.Version)
		return nil
	}

	if _, err := s.Indexes.Ensure(ctx, doc.ID, doc.Version, pages(doc)); err != nil {
		if errors.Is(err, search.ErrStale) {
			return nil
		}
		return err
	}
	s.notify(socket.IndexReadyType, doc.ID, doc.OwnerID, doc.Version)
	return nil
}

func (s *DocumentService) enqueue(docID string, version int64) {
	if s.Indexer != nil {
		s.Indexer.Enqueue(IndexJob{DocID: docID, Version: version})
	}
}

func (s *DocumentService) notify(eventType, docID, userID string, version int64) {
	if s.Events != nil {
		s.Events.Notify(eventType, docID, userID, version)
	}
}

func pages(doc *model.Document) []string {
	return strings.Split(doc.Content, model.PageSeparator)
}
