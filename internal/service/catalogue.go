package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"catalogue/internal/docx"
	"catalogue/internal/model"
	"catalogue/internal/storage"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrReadFailed       = errors.New("error reading file")
	ErrConversionFailed = errors.New("error processing docx file")
	ErrInvalidName      = errors.New("invalid category or file name")
	ErrReaderNil        = errors.New("reader is nil")
)

// sniffLen is how many leading bytes are inspected to detect an upload's content type.
const sniffLen = 3072

// CatalogueService defines the use cases for browsing categorized uploads.
type CatalogueService interface {
	// ListCategory returns the files of a category with their public URLs.
	ListCategory(ctx context.Context, category string) ([]model.FileEntry, error)

	// OpenFile opens a file for download. The caller closes the reader.
	OpenFile(ctx context.Context, category, filename string) (io.ReadCloser, storage.ObjectInfo, error)

	// ConvertDocx reads a .docx file and returns it rendered as HTML.
	ConvertDocx(ctx context.Context, category, filename string) (string, error)

	// Upload stores a file in a category under a sanitized name.
	Upload(ctx context.Context, category string, r io.Reader, originalFilename string, size int64) (*model.FileEntry, error)
}

// catalogueService is a concrete implementation of CatalogueService.
type catalogueService struct {
	store   storage.Storage
	baseURL string
	convert func([]byte) (string, error)
	logger  *slog.Logger
}

// NewCatalogueService constructs a new CatalogueService.
// baseURL is the public origin used to build file URLs, without a trailing slash.
func NewCatalogueService(store storage.Storage, baseURL string, logger *slog.Logger) CatalogueService {
	if logger == nil {
		logger = slog.Default()
	}
	return &catalogueService{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		convert: docx.ToHTML,
		logger:  logger.With(slog.String("component", "catalogue")),
	}
}

func (s *catalogueService) fileURL(category, name string) string {
	return s.baseURL + "/uploads/" + category + "/" + name
}

func (s *catalogueService) ListCategory(ctx context.Context, category string) ([]model.FileEntry, error) {
	names, err := s.store.List(ctx, category)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, ErrCategoryNotFound
		}
		s.logger.Error("list_category_failed", slog.String("category", category), slog.String("error", err.Error()))
		return nil, fmt.Errorf("list category: %w", err)
	}

	entries := make([]model.FileEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, model.FileEntry{Name: name, URL: s.fileURL(category, name)})
	}
	return entries, nil
}

func (s *catalogueService) OpenFile(ctx context.Context, category, filename string) (io.ReadCloser, storage.ObjectInfo, error) {
	rc, info, err := s.store.Get(ctx, category, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, storage.ObjectInfo{}, ErrFileNotFound
		}
		s.logger.Error("open_file_failed",
			slog.String("category", category), slog.String("filename", filename), slog.String("error", err.Error()))
		return nil, storage.ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	return rc, info, nil
}

// ConvertDocx keeps the order exists-check, read, convert. Nothing is cached.
func (s *catalogueService) ConvertDocx(ctx context.Context, category, filename string) (string, error) {
	rc, _, err := s.store.Get(ctx, category, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return "", ErrFileNotFound
		}
		s.logger.Error("read_file_failed",
			slog.String("category", category), slog.String("filename", filename), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Error("read_file_failed",
			slog.String("category", category), slog.String("filename", filename), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	out, err := s.convert(data)
	if err != nil {
		s.logger.Warn("docx_conversion_failed",
			slog.String("category", category), slog.String("filename", filename), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return out, nil
}

// Upload slugifies the base name, keeps a slugified extension and sniffs the content type
// from the first bytes of the stream.
func (s *catalogueService) Upload(ctx context.Context, category string, r io.Reader, originalFilename string, size int64) (*model.FileEntry, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	name := sanitizeFilename(originalFilename)

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	_, err = s.store.Put(ctx, category, name, io.MultiReader(bytes.NewReader(head), r), storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return nil, ErrInvalidName
		}
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	s.logger.Info("file_uploaded",
		slog.String("category", category), slog.String("filename", name), slog.String("content_type", contentType))
	return &model.FileEntry{Name: name, URL: s.fileURL(category, name)}, nil
}

// sanitizeFilename maps "Q1 Report (final).DOCX" to "q1-report-final.docx".
// Names that slugify to nothing get a random UUID base.
func sanitizeFilename(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := filepath.Ext(base)
	stem := slug.Make(strings.TrimSuffix(base, ext))
	if stem == "" {
		stem = uuid.NewString()
	}
	if ext = slug.Make(strings.TrimPrefix(ext, ".")); ext != "" {
		return stem + "." + ext
	}
	return stem
}
