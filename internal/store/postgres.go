package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

const uploadColumns = `id, user_id, file_name, file_type, file_path, status, result_id, uploaded_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Uploads ---

func (s *PostgresStore) CreateUpload(ctx context.Context, u *models.Upload) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO uploads (id, user_id, file_name, file_type, file_path, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING uploaded_at`,
		u.ID, u.UserID, u.FileName, string(u.FileType), u.FilePath, u.Status,
	).Scan(&u.UploadedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

var validTransitions = map[string][]string{
	models.UploadStatusPending: {models.UploadStatusCompleted, models.UploadStatusFailed},
}

// CompleteUpload marks a pending upload completed and links its result.
func (s *PostgresStore) CompleteUpload(ctx context.Context, uploadID, resultID uuid.UUID) error {
	return s.settle(ctx, uploadID, models.UploadStatusCompleted, &resultID)
}

// FailUpload marks a pending upload failed.
func (s *PostgresStore) FailUpload(ctx context.Context, uploadID uuid.UUID) error {
	return s.settle(ctx, uploadID, models.UploadStatusFailed, nil)
}

// settle applies the single allowed status transition. The WHERE clause
// carries the expected current status so a concurrent settle cannot win twice.
func (s *PostgresStore) settle(ctx context.Context, id uuid.UUID, status string, resultID *uuid.UUID) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM uploads WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get upload status: %w", err)
	}

	if !slices.Contains(validTransitions[current], status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE uploads SET status = $2, result_id = $3 WHERE id = $1 AND status = $4`,
		id, status, resultID, current)
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, current)
	}
	return nil
}

func (s *PostgresStore) ListUploads(ctx context.Context, filter UploadFilter) ([]*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads`
	var args []any

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	query += " ORDER BY uploaded_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []*models.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (s *PostgresStore) GetUpload(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	u, err := scanUpload(s.pool.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

// DeleteUpload removes the upload row. Its result row goes with it through
// the ON DELETE CASCADE foreign key.
func (s *PostgresStore) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Results ---

func (s *PostgresStore) CreateResult(ctx context.Context, r *models.Result) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO results (id, upload_id, summary, report_path)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		r.ID, r.UploadID, []byte(r.Summary), r.ReportPath,
	).Scan(&r.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResultByUploadID(ctx context.Context, uploadID uuid.UUID) (*models.Result, error) {
	var r models.Result
	var summary []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, upload_id, summary, report_path, created_at FROM results WHERE upload_id = $1`, uploadID,
	).Scan(&r.ID, &r.UploadID, &summary, &r.ReportPath, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result by upload: %w", err)
	}
	r.Summary = summary
	return &r, nil
}

func scanUpload(row pgx.Row) (*models.Upload, error) {
	var u models.Upload
	var fileType string
	if err := row.Scan(&u.ID, &u.UserID, &u.FileName, &fileType, &u.FilePath,
		&u.Status, &u.ResultID, &u.UploadedAt); err != nil {
		return nil, err
	}
	u.FileType = models.FileType(fileType)
	return &u, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
