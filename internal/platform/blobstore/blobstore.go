// Package blobstore stores uploaded files (service and product images) and
// serves them back under a public URL. Callers only ever keep the returned
// URL; the content is opaque to the rest of the system.
package blobstore

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the largest accepted upload (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// AllowedContentTypes are the sniffed types accepted for upload.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore is the storage contract for uploaded files.
type BlobStore interface {
	Put(ctx context.Context, fileName string, content io.Reader) (*BlobMetadata, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, id string) error
}

// prepare reads and validates an upload and fills in its metadata.
func prepare(fileName string, content io.Reader) ([]byte, BlobMetadata, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, BlobMetadata{}, ErrMissingFileName
	}
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, BlobMetadata{}, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, BlobMetadata{}, ErrFileTooLarge
	}
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !AllowedContentTypes[contentType] {
		return nil, BlobMetadata{}, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	meta := BlobMetadata{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		CreatedAt:   time.Now().UTC(),
	}
	return data, meta, nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore keeps blobs in process memory. Used in tests and when no
// upload directory is configured.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Put(_ context.Context, fileName string, content io.Reader) (*BlobMetadata, error) {
	data, meta, err := prepare(fileName, content)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()
	return &meta, nil
}

func (s *InMemoryBlobStore) Open(_ context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// FSBlobStore writes each blob to <dir>/<id> with its metadata next to it in
// <dir>/<id>.json.
type FSBlobStore struct {
	dir string
}

func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSBlobStore{dir: dir}, nil
}

func (s *FSBlobStore) paths(id string) (string, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", "", ErrBlobNotFound
	}
	base := filepath.Join(s.dir, id)
	return base, base + ".json", nil
}

func (s *FSBlobStore) Put(_ context.Context, fileName string, content io.Reader) (*BlobMetadata, error) {
	data, meta, err := prepare(fileName, content)
	if err != nil {
		return nil, err
	}
	dataPath, metaPath, _ := s.paths(meta.ID)

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileAtomic(dataPath, data); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(metaPath, raw); err != nil {
		os.Remove(dataPath)
		return nil, err
	}
	return &meta, nil
}

func (s *FSBlobStore) Open(_ context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	dataPath, metaPath, err := s.paths(id)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("decode metadata: %w", err)
	}
	f, err := os.Open(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, &meta, nil
}

func (s *FSBlobStore) Delete(_ context.Context, id string) error {
	dataPath, metaPath, err := s.paths(id)
	if err != nil {
		return nil
	}
	for _, p := range []string{metaPath, dataPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store blob: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

type uploadResponse struct {
	FileURL string `json:"file_url"`
}

// BlobHandler implements uploadFile and serves stored files.
type BlobHandler struct {
	store   BlobStore
	baseURL string
}

// NewBlobHandler returns a handler whose file URLs are rooted at baseURL,
// e.g. "https://ozonelife.com".
func NewBlobHandler(store BlobStore, baseURL string) *BlobHandler {
	return &BlobHandler{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// RegisterRoutes mounts the upload endpoint on an authenticated group.
func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/uploads", h.handleUpload)
}

// RegisterPublicRoutes mounts file download at /files/:id.
func (h *BlobHandler) RegisterPublicRoutes(e *echo.Echo) {
	e.GET("/files/:id", h.handleDownload)
}

// FileURL is the public URL of a stored blob.
func (h *BlobHandler) FileURL(id string) string {
	return h.baseURL + "/files/" + id
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	meta, err := h.store.Put(c.Request().Context(), file.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusCreated, uploadResponse{FileURL: h.FileURL(meta.ID)})
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	rc, meta, err := h.store.Open(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrBlobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, meta.FileName))
	header.Set("Cache-Control", "public, max-age=86400, immutable")
	header.Set("ETag", `"`+meta.Hash+`"`)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == `"`+meta.Hash+`"` {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
