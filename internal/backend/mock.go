package backend

import (
	"context"
	"fmt"
	"time"
)

// MockAdapter returns a canned markdown document after a configurable delay.
// Used for dry runs without a real inference backend.
type MockAdapter struct {
	Delay time.Duration
}

func (m *MockAdapter) Name() string { return "Mock" }

func (m *MockAdapter) Convert(ctx context.Context, req Request) (string, error) {
	if err := validate(ProviderMock, req); err != nil {
		return "", err
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", &Error{Provider: ProviderMock, Kind: KindTransport, Err: ctx.Err()}
		}
	}

	return fmt.Sprintf("# Image\n\n| key | value |\n|---|---|\n| mime_type | %s |\n| bytes | %d |\n",
		NormalizeMimeType(req.MimeType), len(req.Image)), nil
}
