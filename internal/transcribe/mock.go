package transcribe

import (
	"context"
	"fmt"
	"sync"
)

// MockRequest records one transcription call for assertions.
type MockRequest struct {
	Audio []byte
	Hint  ContainerHint
}

// MockClient is the local fallback provider used in dev mode and tests.
type MockClient struct {
	mu sync.Mutex
	// FixedText is returned for every call when non-empty; otherwise a
	// deterministic placeholder derived from the payload size is used.
	FixedText string
	Err       error
	Requests  []MockRequest
}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Transcribe(_ context.Context, audio []byte, hint ContainerHint) (string, error) {
	if hint.Empty() {
		return "", ErrMissingContainerHint
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, MockRequest{Audio: append([]byte(nil), audio...), Hint: hint})
	if c.Err != nil {
		return "", c.Err
	}
	if c.FixedText != "" {
		return c.FixedText, nil
	}
	return fmt.Sprintf("simulated transcript of %d bytes", len(audio)), nil
}

func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}
