package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid upload status transition")

// Store is the row store for uploads and their inference results. Every
// method is a single round trip; there are no multi-row transactions.
type Store interface {
	Ping(ctx context.Context) error

	CreateUpload(ctx context.Context, upload *models.Upload) error
	CompleteUpload(ctx context.Context, uploadID, resultID uuid.UUID) error
	FailUpload(ctx context.Context, uploadID uuid.UUID) error
	ListUploads(ctx context.Context, filter UploadFilter) ([]*models.Upload, error)
	GetUpload(ctx context.Context, id uuid.UUID) (*models.Upload, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error

	CreateResult(ctx context.Context, result *models.Result) error
	GetResultByUploadID(ctx context.Context, uploadID uuid.UUID) (*models.Result, error)
}

// UploadFilter narrows ListUploads. An empty UserID matches every upload.
type UploadFilter struct {
	UserID string
	Limit  int
}
