package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/ednaflow/internal/api/middleware"
	"github.com/kiranshivaraju/ednaflow/internal/api/response"
	"github.com/kiranshivaraju/ednaflow/internal/ingest"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// UploadService defines the ingest operations the upload handlers depend on.
type UploadService interface {
	Submit(ctx context.Context, p ingest.SubmitParams) (*ingest.Submission, error)
	List(ctx context.Context, userID string) ([]*models.Upload, error)
	Get(ctx context.Context, id uuid.UUID) (*ingest.Submission, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type createUploadResponse struct {
	Message string         `json:"message"`
	Upload  *models.Upload `json:"upload"`
	Result  *models.Result `json:"result"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// NewCreateUploadHandler returns an http.HandlerFunc for POST /uploads.
func NewCreateUploadHandler(svc UploadService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusBadRequest, "FILE_TOO_LARGE",
					fmt.Sprintf("File exceeds the %d byte upload limit", tooLarge.Limit), nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"user_id, file_type, and file are required", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		params := ingest.SubmitParams{
			UserID:   formValue(r, "user_id", "userId"),
			FileType: formValue(r, "file_type", "fileType"),
		}

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
				return
			}
			params.Data = data
			params.FileName = header.Filename
			params.ContentType = header.Header.Get("Content-Type")
		case errors.Is(err, http.ErrMissingFile):
			// the service reports the missing file together with the other fields
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart body", nil)
			return
		}

		if !authorizedFor(w, r, params.UserID) {
			return
		}

		sub, err := svc.Submit(context.WithoutCancel(r.Context()), params)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.Created(w, createUploadResponse{
			Message: "File uploaded successfully",
			Upload:  sub.Upload,
			Result:  sub.Result,
		})
	}
}

// NewListUploadsHandler returns an http.HandlerFunc for GET /uploads.
func NewListUploadsHandler(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := queryValue(r, "user_id", "userId")
		if subject, ok := mw.GetUserID(r); ok && userID == "" {
			userID = subject
		}
		if !authorizedFor(w, r, userID) {
			return
		}

		uploads, err := svc.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if uploads == nil {
			uploads = []*models.Upload{}
		}
		response.JSON(w, uploads)
	}
}

// NewGetUploadHandler returns an http.HandlerFunc for GET /uploads/{id}.
func NewGetUploadHandler(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUploadID(w, r)
		if !ok {
			return
		}

		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !authorizedFor(w, r, sub.Upload.UserID) {
			return
		}
		response.JSON(w, sub)
	}
}

// NewDeleteUploadHandler returns an http.HandlerFunc for DELETE /uploads/{id}.
func NewDeleteUploadHandler(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUploadID(w, r)
		if !ok {
			return
		}

		if _, verified := mw.GetUserID(r); verified {
			sub, err := svc.Get(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if !authorizedFor(w, r, sub.Upload.UserID) {
				return
			}
		}

		if err := svc.Delete(context.WithoutCancel(r.Context()), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, messageResponse{Message: fmt.Sprintf("Upload with id %s deleted.", id)})
	}
}

func parseUploadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// authorizedFor enforces that a verified token subject owns userID. Without a
// verified subject every request is allowed.
func authorizedFor(w http.ResponseWriter, r *http.Request, userID string) bool {
	subject, ok := mw.GetUserID(r)
	if !ok || userID == "" || userID == subject {
		return true
	}
	response.Error(w, http.StatusForbidden, "FORBIDDEN", "Token does not belong to this user", nil)
	return false
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ingest.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, nil)
	case errors.Is(err, ingest.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Upload not found", nil)
	default:
		logging.FromContext(r.Context()).Error("upload request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w)
	}
}

func formValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.FormValue(k)); v != "" {
			return v
		}
	}
	return ""
}

func queryValue(r *http.Request, keys ...string) string {
	q := r.URL.Query()
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
