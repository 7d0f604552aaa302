package voice

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

// Source yields one audio sample. Implementations may block.
type Source interface {
	Read(ctx context.Context) (Audio, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Audio, error)

// Read implements Source.
func (f SourceFunc) Read(ctx context.Context) (Audio, error) {
	return f(ctx)
}

// Capture reads from src within the listen window. When the window elapses
// before audio arrives it returns a CAPTURE_TIMEOUT error and discards any
// late result.
func Capture(ctx context.Context, src Source, timeout time.Duration) (Audio, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		audio Audio
		err   error
	}
	done := make(chan result, 1)
	go func() {
		audio, err := src.Read(ctx)
		done <- result{audio: audio, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Audio{}, captureError(res.err)
		}
		return res.audio, nil
	case <-ctx.Done():
		return Audio{}, captureError(ctx.Err())
	}
}

func captureError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	case errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
	default:
		return err
	}
}
