// Package evermark orchestrates the content-preservation pipeline: detect,
// extract, deduplicate, persist, upload, and queue the mint.
package evermark

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ipfsnut/everd/internal/metadata"
	"github.com/ipfsnut/everd/internal/storage"
)

// JobTypeMint is the queue entry written for each created evermark. The mint
// runs in the background worker; its outcome never blocks or fails creation.
const JobTypeMint = "mint_evermark"

// Store is the persistence surface the pipeline needs.
type Store interface {
	CreateEvermark(e storage.Evermark) (storage.Evermark, error)
	GetEvermark(tokenID int64) (storage.Evermark, error)
	GetEvermarkBySourceURL(sourceURL string) (storage.Evermark, error)
	ListRecentEvermarks(limit, offset int) ([]storage.Evermark, error)
	CountEvermarks() (int, error)
	SearchEvermarks(query string, limit int) ([]storage.Evermark, error)
	MarkMetadataUploaded(tokenID int64, ipfsHash, metadataJSON string) error
	MarkUploadFailed(tokenID int64, uploadErr string) error
	AddTags(sourceURL string, tags []string) error
	TagCounts() (map[string]int, error)
	ContentTypeCounts() (map[string]int, error)
	GetOrCreateUser(fid int64, username string) (storage.User, error)
	GetUserStats(fid int64) (storage.UserStats, error)
	EnqueueJob(job storage.Job) error
}

// Uploader pins metadata to content-addressed storage.
type Uploader interface {
	PinMetadata(ctx context.Context, m metadata.ContentMetadata) (string, error)
}

// Extractor derives metadata from a URL, classifying it along the way.
type Extractor interface {
	Extract(ctx context.Context, url string) (metadata.ContentMetadata, error)
}

// Result is what a successful creation produced. IPFSHash is empty when the
// upload failed; the record then persists with processing_status=ipfs_failed.
type Result struct {
	TokenID  int64
	Metadata metadata.ContentMetadata
	IPFSHash string
	Status   string
}

type Service struct {
	store     Store
	uploader  Uploader
	extractor Extractor
	logger    *slog.Logger
}

func NewService(store Store, uploader Uploader, extractor Extractor) *Service {
	return &Service{
		store:     store,
		uploader:  uploader,
		extractor: extractor,
		logger:    slog.Default(),
	}
}

// Create runs the full pipeline for a URL. fid is optional (0 = anonymous);
// user resolution failures are non-fatal. Returns *Error for every failure
// mode so the API layer can map status codes directly.
func (s *Service) Create(ctx context.Context, url string, fid int64) (Result, error) {
	if err := ValidateURL(url); err != nil {
		return Result{}, err
	}

	// Duplicate check first: an existing record must short-circuit before
	// any metadata is re-extracted.
	if existing, err := s.store.GetEvermarkBySourceURL(url); err == nil {
		return Result{}, NewDuplicateError(existing.TokenID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Result{}, NewProcessingError("duplicate check failed", err)
	}

	meta, err := s.extractor.Extract(ctx, url)
	if err != nil {
		return Result{}, NewProcessingError("could not extract metadata from the provided url", err)
	}

	var userID string
	if fid > 0 {
		user, err := s.store.GetOrCreateUser(fid, "")
		if err != nil {
			s.logger.Warn("could not resolve user, continuing without owner", "fid", fid, "error", err)
		} else {
			userID = user.ID
		}
	}

	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		return Result{}, NewProcessingError("encoding tags", err)
	}

	record, err := s.store.CreateEvermark(storage.Evermark{
		Title:       meta.Title,
		Author:      meta.Author,
		Description: meta.Description,
		ContentType: string(meta.ContentType),
		SourceURL:   url,
		Tags:        string(tagsJSON),
		UserID:      userID,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// Lost a race with a concurrent create for the same URL; the unique
		// constraint is the authority.
		if existing, lookupErr := s.store.GetEvermarkBySourceURL(url); lookupErr == nil {
			return Result{}, NewDuplicateError(existing.TokenID)
		}
		return Result{}, NewDuplicateError(0)
	}
	if err != nil {
		return Result{}, NewProcessingError("persisting evermark", err)
	}

	result := Result{TokenID: record.TokenID, Metadata: meta, Status: storage.StatusPending}

	ipfsHash, uploadErr := s.uploader.PinMetadata(ctx, meta)
	if uploadErr != nil {
		// The record is kept in a degraded state; creation still succeeds.
		s.logger.Warn("metadata upload failed", "token_id", record.TokenID, "error", uploadErr)
		if err := s.store.MarkUploadFailed(record.TokenID, uploadErr.Error()); err != nil {
			s.logger.Error("recording upload failure", "token_id", record.TokenID, "error", err)
		}
		result.Status = storage.StatusIPFSFailed
	} else {
		metaJSON, _ := json.Marshal(meta)
		if err := s.store.MarkMetadataUploaded(record.TokenID, ipfsHash, string(metaJSON)); err != nil {
			s.logger.Error("recording upload result", "token_id", record.TokenID, "error", err)
		}
		result.IPFSHash = ipfsHash
		result.Status = storage.StatusMetadataUploaded
	}

	s.enqueueMint(record.TokenID)

	return result, nil
}

// BatchItem is the per-URL outcome of a batch create.
type BatchItem struct {
	URL    string
	Result Result
	Err    error
}

// CreateBatch runs the pipeline for several URLs with bounded concurrency.
// Each URL succeeds or fails independently.
func (s *Service) CreateBatch(ctx context.Context, urls []string, fid int64) []BatchItem {
	if len(urls) == 0 {
		return nil
	}

	items := make([]BatchItem, len(urls))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to keep extraction fetches polite.

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			res, err := s.Create(gCtx, u, fid)
			items[i] = BatchItem{URL: u, Result: res, Err: err}
			return nil
		})
	}

	g.Wait()
	return items
}

// enqueueMint queues the NFT mint for the background worker. Failures are
// logged only; minting never affects the caller's response.
func (s *Service) enqueueMint(tokenID int64) {
	payload, _ := json.Marshal(map[string]int64{"token_id": tokenID})
	err := s.store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeMint,
		PayloadJSON: string(payload),
	})
	if err != nil {
		s.logger.Error("enqueueing mint job", "token_id", tokenID, "error", err)
	}
}

// Get returns a single evermark by token ID.
func (s *Service) Get(tokenID int64) (storage.Evermark, error) {
	e, err := s.store.GetEvermark(tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Evermark{}, NewNotFoundError("")
	}
	if err != nil {
		return storage.Evermark{}, NewProcessingError("loading evermark", err)
	}
	return e, nil
}

// Recent returns a newest-first page of evermarks plus the total count.
func (s *Service) Recent(page, limit int) ([]storage.Evermark, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, err := s.store.ListRecentEvermarks(limit, (page-1)*limit)
	if err != nil {
		return nil, 0, NewProcessingError("listing evermarks", err)
	}
	total, err := s.store.CountEvermarks()
	if err != nil {
		return nil, 0, NewProcessingError("counting evermarks", err)
	}
	return items, total, nil
}

// Search matches evermarks by title, description, or tag substring.
func (s *Service) Search(query string, limit int) ([]storage.Evermark, error) {
	items, err := s.store.SearchEvermarks(query, limit)
	if err != nil {
		return nil, NewProcessingError("searching evermarks", err)
	}
	return items, nil
}

// Tag merges additional tags into the record for the given source URL.
func (s *Service) Tag(url string, tags []string) error {
	err := s.store.AddTags(url, tags)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("no evermark exists for that url")
	}
	if err != nil {
		return NewProcessingError("updating tags", err)
	}
	return nil
}

// Collections returns per-tag record counts for browsing the archive.
func (s *Service) Collections() (map[string]int, error) {
	counts, err := s.store.TagCounts()
	if err != nil {
		return nil, NewProcessingError("loading collections", err)
	}
	return counts, nil
}

// TypeBreakdown returns per-content-type record counts.
func (s *Service) TypeBreakdown() (map[string]int, error) {
	counts, err := s.store.ContentTypeCounts()
	if err != nil {
		return nil, NewProcessingError("loading content type breakdown", err)
	}
	return counts, nil
}

// Stats aggregates a user's archive activity.
func (s *Service) Stats(fid int64) (storage.UserStats, error) {
	stats, err := s.store.GetUserStats(fid)
	if err != nil {
		return storage.UserStats{}, NewProcessingError("loading stats", err)
	}
	return stats, nil
}
