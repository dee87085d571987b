package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	mw "github.com/kiranshivaraju/ednaflow/internal/api/middleware"
	"github.com/kiranshivaraju/ednaflow/internal/api/response"
	"github.com/kiranshivaraju/ednaflow/internal/identity"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

// IdentityProvider defines the account operations the auth handlers forward.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (json.RawMessage, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpResponse struct {
	User json.RawMessage `json:"user"`
}

type loginResponse struct {
	Session *models.Session `json:"session"`
	User    json.RawMessage `json:"user"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

// NewSignUpHandler returns an http.HandlerFunc for POST /auth/signup.
func NewSignUpHandler(idp IdentityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := decodeCredentials(w, r)
		if !ok {
			return
		}

		user, err := idp.SignUp(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeIdentityError(w, r, err)
			return
		}
		response.Created(w, signUpResponse{User: user})
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /auth/login.
func NewLoginHandler(idp IdentityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := decodeCredentials(w, r)
		if !ok {
			return
		}

		session, err := idp.Login(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeIdentityError(w, r, err)
			return
		}
		response.JSON(w, loginResponse{Session: session, User: session.User})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /auth/logout. The
// token may be sent in the body or as a Bearer header.
func NewLogoutHandler(idp IdentityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		token := strings.TrimSpace(req.AccessToken)
		if token == "" {
			token = mw.ExtractBearerToken(r)
		}
		if token == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "access_token required", nil)
			return
		}

		if err := idp.Logout(r.Context(), token); err != nil {
			writeIdentityError(w, r, err)
			return
		}
		response.JSON(w, logoutResponse{Success: true})
	}
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "email and password required", nil)
		return req, false
	}
	return req, true
}

// writeIdentityError passes provider-reported rejections through as 400 and
// hides everything else behind a generic 500.
func writeIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		response.Error(w, http.StatusBadRequest, "AUTH_ERROR", apiErr.Message, nil)
		return
	}
	logging.FromContext(r.Context()).Error("identity request failed",
		"path", r.URL.Path, "error", err)
	response.InternalError(w)
}
