package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// DefaultMaxUploadBytes is the upload size ceiling used when none is configured
const DefaultMaxUploadBytes int64 = 10 << 20

// allowedExtensions and allowedContentTypes must both match for an upload to be accepted
var (
	allowedExtensions = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".pdf":  true,
	}
	allowedContentTypes = map[string]bool{
		"image/jpeg":      true,
		"image/jpg":       true,
		"image/png":       true,
		"application/pdf": true,
	}
)

// IDGenerator generates unique IDs for receipts and stored files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random v4 UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Options tunes the ingestion pipeline. Zero values select the defaults.
type Options struct {
	// MaxUploadBytes caps the accepted file size (default 10 MiB)
	MaxUploadBytes int64
	// ScanTimeout bounds each external call; zero means no deadline
	ScanTimeout time.Duration
}

// Upload is a receipt file received from a client
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
	// BaseURL is the public origin the stored file is reachable under
	BaseURL string
}

// Service handles receipt operations
type Service struct {
	store          *Store
	scanner        scanning.Scanner
	storage        Storage
	idGenerator    IDGenerator
	timeSource     TimeSource
	maxUploadBytes int64
	scanTimeout    time.Duration
}

// NewService creates a new Service with default ID generator and time source
func NewService(store *Store, scanner scanning.Scanner, storage Storage, opts Options) *Service {
	return NewServiceWithDeps(store, scanner, storage, opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store *Store, scanner scanning.Scanner, storage Storage, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Service{
		store:          store,
		scanner:        scanner,
		storage:        storage,
		idGenerator:    idGen,
		timeSource:     timeSrc,
		maxUploadBytes: opts.MaxUploadBytes,
		scanTimeout:    opts.ScanTimeout,
	}
}

// MaxUploadBytes returns the configured upload size ceiling
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// isAllowedType reports whether both the extension and the content type are accepted
func isAllowedType(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return allowedExtensions[ext] && allowedContentTypes[mediaType]
}

func tooLargeError(limit int64) *Error {
	return &Error{
		Kind:    KindTooLarge,
		Message: "File is too large. Maximum size is " + formatSize(limit),
	}
}

// formatSize renders a byte limit as whole MB, rounded up, or as bytes below 1 MiB
func formatSize(n int64) string {
	if n < 1<<20 {
		return fmt.Sprintf("%d bytes", n)
	}
	return fmt.Sprintf("%dMB", (n+1<<20-1)>>20)
}

// Ingest validates an upload, stores the file, runs text extraction and
// structuring, and inserts the resulting record at the front of the store.
// Nothing is inserted unless both external calls succeed.
func (s *Service) Ingest(ctx context.Context, upload *Upload) (*Record, error) {
	if upload == nil {
		return nil, ErrNoFile
	}
	if !isAllowedType(upload.Filename, upload.ContentType) {
		return nil, ErrUnsupportedType
	}
	size := upload.Size
	if n := int64(len(upload.Data)); n > size {
		size = n
	}
	if size > s.maxUploadBytes {
		return nil, tooLargeError(s.maxUploadBytes)
	}

	// Random ID plus timestamp keeps concurrent uploads from colliding
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	name := fmt.Sprintf("%s-%d%s", s.idGenerator.Generate(), s.timeSource.Now().UnixMilli(), ext)

	savedName, err := s.storage.Save(name, upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	rawText, err := s.extractText(ctx, upload.Data, upload.ContentType)
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"filename", upload.Filename,
			"content_type", upload.ContentType,
			"file_size", size,
			"error", err,
		)
		s.discardFile(savedName)
		return nil, &Error{Kind: KindExtractionFailed, Message: "Failed to extract text from image", Err: err}
	}

	parsed, err := s.structureReceipt(ctx, rawText)
	if err != nil {
		slog.Error("Failed to parse receipt data", "filename", upload.Filename, "error", err)
		s.discardFile(savedName)
		return nil, &Error{Kind: KindParseFailed, Message: "Failed to parse receipt data", Err: err}
	}

	record := &Record{
		ID:         s.idGenerator.Generate(),
		ImageURL:   strings.TrimSuffix(upload.BaseURL, "/") + "/uploads/" + url.PathEscape(savedName),
		ParsedData: *parsed,
		RawText:    rawText,
		UploadedAt: s.timeSource.Now(),
		Filename:   savedName,
	}
	s.store.InsertFront(record)

	slog.Info("Receipt ingested", "id", record.ID, "merchant", parsed.Merchant, "total", parsed.Total)
	return record, nil
}

func (s *Service) extractText(ctx context.Context, data []byte, contentType string) (string, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.scanner.ExtractText(ctx, data, contentType)
}

func (s *Service) structureReceipt(ctx context.Context, rawText string) (*scanning.ParsedReceipt, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	reply, err := s.scanner.StructureReceipt(ctx, rawText)
	if err != nil {
		return nil, fmt.Errorf("structuring receipt: %w", err)
	}
	parsed, err := scanning.ParseReceiptJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	return parsed, nil
}

// callContext applies the per-call scan timeout, if any
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.scanTimeout > 0 {
		return context.WithTimeout(ctx, s.scanTimeout)
	}
	return context.WithCancel(ctx)
}

// discardFile removes a stored file, logging instead of failing
func (s *Service) discardFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// ListReceipts returns all receipts, most recent first
func (s *Service) ListReceipts() []*Record {
	return s.store.List()
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Record, error) {
	record, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// DeleteReceipt removes a receipt and, best effort, its stored file
func (s *Service) DeleteReceipt(id string) error {
	record, ok := s.store.Delete(id)
	if !ok {
		return ErrNotFound
	}
	s.discardFile(record.Filename)
	return nil
}

// Stats computes dashboard statistics over the current receipts
func (s *Service) Stats() Stats {
	return ComputeStats(s.store.List())
}

// Count returns the number of stored receipts
func (s *Service) Count() int {
	return s.store.Len()
}

// GetUpload returns the bytes of a stored receipt file
func (s *Service) GetUpload(name string) ([]byte, error) {
	data, err := s.storage.Get(name)
	if err != nil {
		return nil, fmt.Errorf("getting upload: %w", err)
	}
	return data, nil
}
