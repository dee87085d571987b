package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSummary = `{"overall_silhouette":0.82,"results":[{"id":"s1","cluster":0,"confidence":0.9,"silhouette":0.8}]}`

func TestClassify_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cluster", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "sample.fasta", hdr.Filename)
		assert.Equal(t, "text/plain", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, ">s1\nACGT\n", string(data))
		assert.Len(t, r.MultipartForm.File, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleSummary))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL+"/cluster", 5*time.Second)
	summary, err := c.Classify(context.Background(), []byte(">s1\nACGT\n"), "sample.fasta", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, sampleSummary, string(summary))
}

func TestClassify_DefaultContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", hdr.Header.Get("Content-Type"))
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), []byte("x"), "a.csv", "")
	require.NoError(t, err)
}

func TestClassify_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"unsupported sequence format"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), []byte("x"), "a.fasta", "")

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, http.StatusUnprocessableEntity, infErr.StatusCode)
	assert.Equal(t, "unsupported sequence format", infErr.Message)
}

func TestClassify_Non2xxWithoutJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), []byte("x"), "a.fasta", "")

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, "503 Service Unavailable", infErr.Message)
}

func TestClassify_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), []byte("x"), "a.fasta", "")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClassify_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 50*time.Millisecond)
	_, err := c.Classify(context.Background(), []byte("x"), "a.fasta", "")
	assert.ErrorIs(t, err, ErrInferenceTimeout)
}

func TestClassify_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Classify(ctx, []byte("x"), "a.fasta", "")
	assert.ErrorIs(t, err, ErrInferenceTimeout)
}

func TestClassify_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(url, time.Second)
	_, err := c.Classify(context.Background(), []byte("x"), "a.fasta", "")
	assert.ErrorIs(t, err, ErrInferenceUnreachable)
}

func TestUpstreamMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"bad input"}`, "bad input"},
		{"detail object", `{"detail":[{"loc":["file"]}]}`, `[{"loc":["file"]}]`},
		{"error field", `{"error":"boom"}`, "boom"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"empty object", `{}`, "500 Internal Server Error"},
		{"not json", `<html>`, "500 Internal Server Error"},
		{"truncated", `{"error":"` + strings.Repeat("a", 400) + `"}`, strings.Repeat("a", maxErrorMessageLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upstreamMessage([]byte(tt.body), "500 Internal Server Error"))
		})
	}
}

func TestClassifyError_Mapping(t *testing.T) {
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), ErrInferenceTimeout)
	assert.ErrorIs(t, classifyError(context.Canceled), ErrInferenceTimeout)
	assert.ErrorIs(t, classifyError(errors.New("connection refused")), ErrInferenceUnreachable)
}
