package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kiranshivaraju/ednaflow/internal/inference"
)

// SampleSummary is a representative clustering response.
const SampleSummary = `{"overall_silhouette":0.82,"results":[{"id":"s1","cluster":0,"confidence":0.9,"silhouette":0.8}]}`

// MockClassifier satisfies inference.Classifier for testing.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, data []byte, fileName, contentType string) (json.RawMessage, error)

	mu    sync.Mutex
	calls int
}

func (m *MockClassifier) Classify(ctx context.Context, data []byte, fileName, contentType string) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, data, fileName, contentType)
	}
	return json.RawMessage(SampleSummary), nil
}

// Calls reports how many times Classify ran.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// NewMockClassifier returns a MockClassifier answering with SampleSummary.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// NewFailingClassifier returns a MockClassifier that always returns the given error.
func NewFailingClassifier(err error) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(_ context.Context, _ []byte, _, _ string) (json.RawMessage, error) {
			return nil, err
		},
	}
}

// NewTimeoutClassifier returns a MockClassifier that blocks until the context
// is done.
func NewTimeoutClassifier() *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, _ []byte, _, _ string) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, inference.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockClassifier implements Classifier.
var _ inference.Classifier = (*MockClassifier)(nil)
