package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Observer receives catalog operation outcomes.
type Observer interface {
	RecordListing(d time.Duration, count int, err error)
	RecordIngestion(d time.Duration, size int64, err error)
}

type nopObserver struct{}

func (nopObserver) RecordListing(time.Duration, int, error)     {}
func (nopObserver) RecordIngestion(time.Duration, int64, error) {}

// CatalogService handles listing and ingesting catalog images.
type CatalogService interface {
	// List returns up to MaxListResults uploaded images under the category's
	// namespace. The result is never nil.
	List(ctx context.Context, category string) ([]MediaResource, error)

	// Ingest stores the image at req.URL under the category's namespace and
	// reports whether it succeeded. Failure details are logged, never
	// returned.
	Ingest(ctx context.Context, req IngestRequest) bool

	// RecentIngestions returns the latest ingestion attempts, newest first.
	RecentIngestions(ctx context.Context, limit int) ([]IngestionRecord, error)
}

// ServiceConfig holds the catalog service settings.
type ServiceConfig struct {
	// Root is the namespace every category lives under.
	Root string

	// MaxConcurrent bounds simultaneous ingestions. Zero means unbounded.
	MaxConcurrent int64

	// Observer receives operation outcomes. Nil disables it.
	Observer Observer
}

// catalogService implements CatalogService.
type catalogService struct {
	store    Store
	fetcher  Fetcher
	repo     IngestionRepository
	root     string
	slots    *semaphore.Weighted
	observer Observer
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store Store, fetcher Fetcher, repo IngestionRepository, cfg ServiceConfig) CatalogService {
	s := &catalogService{
		store:    store,
		fetcher:  fetcher,
		repo:     repo,
		root:     cfg.Root,
		observer: cfg.Observer,
	}
	if s.repo == nil {
		s.repo = NewNopIngestionRepository()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if cfg.MaxConcurrent > 0 {
		s.slots = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return s
}

// List queries the store for the category's prefix with the upload type and
// the result cap.
func (s *catalogService) List(ctx context.Context, category string) ([]MediaResource, error) {
	start := time.Now()
	prefix := PrefixFor(s.root, category)

	resources, err := s.store.List(ctx, ListQuery{
		Type:       DeliveryTypeUpload,
		Prefix:     prefix,
		MaxResults: MaxListResults,
	})
	if err != nil {
		err = fmt.Errorf("%w: listing %q: %w", ErrRemoteStore, prefix, err)
		s.observer.RecordListing(time.Since(start), 0, err)
		return nil, err
	}

	if len(resources) > MaxListResults {
		resources = resources[:MaxListResults]
	}
	if resources == nil {
		resources = []MediaResource{}
	}
	s.observer.RecordListing(time.Since(start), len(resources), nil)
	return resources, nil
}

// Ingest runs one ingestion and records its outcome.
func (s *catalogService) Ingest(ctx context.Context, req IngestRequest) bool {
	start := time.Now()
	res, err := s.ingest(ctx, req)

	var size int64
	if res != nil {
		size = res.Bytes
	}
	s.observer.RecordIngestion(time.Since(start), size, err)
	s.record(ctx, req, res, err)

	if err != nil {
		slog.Error("image ingestion failed",
			slog.String("url", req.URL),
			slog.String("category", req.Category),
			slog.Any("error", err),
		)
		return false
	}

	slog.Info("image ingested",
		slog.String("public_id", res.PublicID),
		slog.String("url", req.URL),
		slog.Int64("bytes", res.Bytes),
	)
	return true
}

func (s *catalogService) ingest(ctx context.Context, req IngestRequest) (*MediaResource, error) {
	folder, err := FolderFor(s.root, req.Category)
	if err != nil {
		return nil, err
	}

	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: waiting for an ingestion slot: %w", ErrIngestion, err)
		}
		defer s.slots.Release(1)
	}

	src, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	obj := Object{
		PublicID:    folder + "/" + uuid.NewString(),
		Folder:      folder,
		Format:      src.Format,
		ContentType: src.ContentType,
		Body:        src.Body,
		Width:       src.Width,
		Height:      src.Height,
	}
	res, err := s.store.Put(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("%w: storing %s: %w", ErrRemoteStore, obj.PublicID, err)
	}
	return res, nil
}

// record writes the audit row. Failures here never change the outcome.
func (s *catalogService) record(ctx context.Context, req IngestRequest, res *MediaResource, ingestErr error) {
	rec := &IngestionRecord{
		SourceURL: req.URL,
		Category:  req.Category,
		Succeeded: ingestErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		rec.PublicID = res.PublicID
		rec.Bytes = res.Bytes
	}
	if ingestErr != nil {
		rec.Error = ingestErr.Error()
	}

	if err := s.repo.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to record ingestion",
			slog.String("url", req.URL),
			slog.Any("error", err),
		)
	}
}

// RecentIngestions returns the latest attempts from the audit log.
func (s *catalogService) RecentIngestions(ctx context.Context, limit int) ([]IngestionRecord, error) {
	return s.repo.Recent(ctx, limit)
}
