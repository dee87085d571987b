// Package ingest runs the upload workflow: store the file, record it, ask the
// inference endpoint to classify it, and persist the outcome.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/ednaflow/internal/blob"
	"github.com/kiranshivaraju/ednaflow/internal/cache"
	"github.com/kiranshivaraju/ednaflow/internal/inference"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
	"github.com/kiranshivaraju/ednaflow/internal/store"
	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

// SubmitParams is one uploaded file plus its metadata.
type SubmitParams struct {
	UserID      string
	FileType    string
	FileName    string
	ContentType string
	Data        []byte
}

// Submission is an upload together with its result. Result is nil when
// inference failed.
type Submission struct {
	Upload *models.Upload `json:"upload"`
	Result *models.Result `json:"result"`
}

// Options tunes optional behaviour of the Service.
type Options struct {
	// Cache backs the listing cache. Nil disables it.
	Cache        cache.Cache
	ListCacheTTL time.Duration
	// CleanupOrphans deletes the stored blob when the upload row cannot be
	// written.
	CleanupOrphans bool
}

// Service coordinates the blob store, the row store and the classifier.
type Service struct {
	blobs      blob.Store
	rows       store.Store
	classifier inference.Classifier
	opts       Options
}

// NewService creates a new ingest Service.
func NewService(blobs blob.Store, rows store.Store, classifier inference.Classifier, opts Options) *Service {
	return &Service{
		blobs:      blobs,
		rows:       rows,
		classifier: classifier,
		opts:       opts,
	}
}

// Submit stores the file, records a pending upload, classifies it and
// settles the upload as completed or failed. Steps run once, in order, with
// no retries. An inference failure is not an error: it yields a failed
// upload and a nil Result.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Submission, error) {
	fileType, err := validate(p)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	key := storageKey(id, p.FileName)
	log := logging.FromContext(ctx).With("upload_id", id, "user_id", p.UserID)

	if err := s.blobs.Put(ctx, key, p.Data, p.ContentType); err != nil {
		log.Error("blob put failed", "key", key, "error", err)
		return nil, &StorageError{Op: "put", Err: err}
	}

	upload := &models.Upload{
		ID:       id,
		UserID:   p.UserID,
		FileName: p.FileName,
		FileType: fileType,
		FilePath: key,
		Status:   models.UploadStatusPending,
	}
	if err := s.rows.CreateUpload(ctx, upload); err != nil {
		log.Error("create upload failed", "key", key, "error", err)
		s.discardOrphan(ctx, log, key)
		return nil, &PersistenceError{Op: "create upload", Err: err}
	}
	log.Info("upload stored", "key", key, "bytes", len(p.Data))

	outcome := s.classify(ctx, log, p)

	result, err := s.settle(ctx, upload, outcome)
	s.invalidateListings(ctx, log, p.UserID)
	if err != nil {
		log.Error("settle upload failed", "error", err)
		return nil, err
	}

	log.Info("upload settled", "status", upload.Status)
	return &Submission{Upload: upload, Result: result}, nil
}

func validate(p SubmitParams) (models.FileType, error) {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.FileType) == "" || len(p.Data) == 0 {
		return "", &ValidationError{Message: "user_id, file_type, and file are required"}
	}
	ft, ok := models.ParseFileType(p.FileType)
	if !ok {
		return "", &ValidationError{Message: "Invalid file type. Allowed: fasta, fastq, csv"}
	}
	return ft, nil
}

func (s *Service) classify(ctx context.Context, log *slog.Logger, p SubmitParams) Outcome {
	start := time.Now()
	summary, err := s.classifier.Classify(ctx, p.Data, p.FileName, p.ContentType)
	if err != nil {
		log.Warn("inference failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return Failed{Reason: err}
	}
	log.Info("inference succeeded", "duration_ms", time.Since(start).Milliseconds())
	return Classified{Summary: summary}
}

// settle is the single persistence step for an inference outcome.
func (s *Service) settle(ctx context.Context, upload *models.Upload, outcome Outcome) (*models.Result, error) {
	switch o := outcome.(type) {
	case Classified:
		result := &models.Result{
			ID:       uuid.New(),
			UploadID: upload.ID,
			Summary:  o.Summary,
		}
		if err := s.rows.CreateResult(ctx, result); err != nil {
			return nil, &PersistenceError{Op: "create result", Err: err}
		}
		if err := s.rows.CompleteUpload(ctx, upload.ID, result.ID); err != nil {
			return nil, &PersistenceError{Op: "complete upload", Err: err}
		}
		upload.Status = models.UploadStatusCompleted
		upload.ResultID = &result.ID
		return result, nil

	case Failed:
		if err := s.rows.FailUpload(ctx, upload.ID); err != nil {
			return nil, &PersistenceError{Op: "fail upload", Err: err}
		}
		upload.Status = models.UploadStatusFailed
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown outcome %T", outcome)
	}
}

// discardOrphan makes one best-effort attempt to remove a blob whose row
// could not be written.
func (s *Service) discardOrphan(ctx context.Context, log *slog.Logger, key string) {
	if !s.opts.CleanupOrphans {
		log.Warn("orphaned blob left in place", "key", key)
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Warn("orphaned blob cleanup failed", "key", key, "error", err)
		return
	}
	log.Info("orphaned blob removed", "key", key)
}

// List returns uploads newest first, optionally restricted to one user.
//
// Cached listings are keyed by the listing generation read before the
// database query, so a listing computed before a concurrent change lands on
// a key that is no longer read.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Upload, error) {
	log := logging.FromContext(ctx)

	key, cacheable := s.listingKey(ctx, log, userID)
	if cacheable {
		data, found, err := s.opts.Cache.Get(ctx, key)
		if err != nil {
			log.Warn("listing cache read failed", "key", key, "error", err)
		}
		if found {
			var uploads []*models.Upload
			if err := json.Unmarshal(data, &uploads); err == nil && uploads != nil {
				return uploads, nil
			}
		}
	}

	uploads, err := s.rows.ListUploads(ctx, store.UploadFilter{UserID: userID})
	if err != nil {
		return nil, &PersistenceError{Op: "list uploads", Err: err}
	}
	if uploads == nil {
		uploads = []*models.Upload{}
	}

	if cacheable && s.opts.ListCacheTTL > 0 {
		if data, err := json.Marshal(uploads); err == nil {
			if err := s.opts.Cache.Set(ctx, key, data, s.opts.ListCacheTTL); err != nil {
				log.Warn("listing cache write failed", "key", key, "error", err)
			}
		}
	}
	return uploads, nil
}

// listingKey resolves the current cache key for a listing. It reports false
// when there is no cache or the generation cannot be read.
func (s *Service) listingKey(ctx context.Context, log *slog.Logger, userID string) (string, bool) {
	if s.opts.Cache == nil {
		return "", false
	}
	genKey := cache.UploadListGenerationKey(userID)
	data, found, err := s.opts.Cache.Get(ctx, genKey)
	if err != nil {
		log.Warn("listing generation read failed", "key", genKey, "error", err)
		return "", false
	}
	var gen int64
	if found {
		gen, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			log.Warn("listing generation malformed", "key", genKey, "error", err)
			return "", false
		}
	}
	return cache.UploadListKey(userID, gen), true
}

// Get returns one upload and its result, if any.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	upload, err := s.rows.GetUpload(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get upload", Err: err}
	}

	sub := &Submission{Upload: upload}
	if upload.ResultID == nil {
		return sub, nil
	}
	result, err := s.rows.GetResultByUploadID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return sub, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get result", Err: err}
	}
	sub.Result = result
	return sub, nil
}

// Delete removes an upload's blob and row. A blob that cannot be removed is
// logged and does not stop the row delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	log := logging.FromContext(ctx).With("upload_id", id)

	upload, err := s.rows.GetUpload(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "get upload", Err: err}
	}

	if err := s.blobs.Delete(ctx, upload.FilePath); err != nil {
		log.Warn("blob delete failed", "key", upload.FilePath, "error", err)
	}

	if err := s.rows.DeleteUpload(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "delete upload", Err: err}
	}

	s.invalidateListings(ctx, log, upload.UserID)
	log.Info("upload deleted", "user_id", upload.UserID)
	return nil
}

func (s *Service) invalidateListings(ctx context.Context, log *slog.Logger, userID string) {
	if s.opts.Cache == nil {
		return
	}
	// Generation counters never expire: a reset could revive a stale
	// listing stored under a reused generation.
	for _, id := range []string{userID, ""} {
		key := cache.UploadListGenerationKey(id)
		if _, err := s.opts.Cache.Incr(ctx, key); err != nil {
			log.Warn("listing cache invalidation failed", "key", key, "error", err)
		}
	}
}
