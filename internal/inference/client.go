// Package inference calls the external sequence clustering and
// classification endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const maxErrorMessageLen = 256

// Classifier sends one file to the inference endpoint and returns the raw
// JSON body it answers with.
type Classifier interface {
	Classify(ctx context.Context, data []byte, fileName, contentType string) (json.RawMessage, error)
}

// HTTPClient implements Classifier with a single multipart POST.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a client for the given endpoint URL. The timeout
// bounds the whole call including reading the response body.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Classify(ctx context.Context, data []byte, fileName, contentType string) (json.RawMessage, error) {
	body, formType, err := multipartBody(data, fileName, contentType)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &InferenceError{StatusCode: resp.StatusCode, Message: upstreamMessage(raw, resp.Status)}
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	return json.RawMessage(raw), nil
}

func multipartBody(data []byte, fileName, contentType string) (*bytes.Buffer, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// upstreamMessage extracts a short message from an error body. FastAPI puts
// it in "detail"; other servers use "error" or "message".
func upstreamMessage(body []byte, fallback string) string {
	var e struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := fallback
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Detail != nil:
			if s, ok := e.Detail.(string); ok {
				msg = s
			} else if b, err := json.Marshal(e.Detail); err == nil {
				msg = string(b)
			}
		case e.Error != "":
			msg = e.Error
		case e.Message != "":
			msg = e.Message
		}
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

// classifyError maps transport errors to the package's sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrInferenceUnreachable, err)
}
