package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// DefaultLocationTimeout bounds a position lookup. An alert proceeds without
// a location rather than waiting past this.
const DefaultLocationTimeout = 5 * time.Second

// Locator resolves the device position. Implementations must honor the
// context deadline; the dispatcher never blocks past its configured bound.
type Locator interface {
	Locate(ctx context.Context) (*models.Location, error)
}

// HTTPLocator reads the position from a local positioning endpoint that
// returns {latitude, longitude, accuracy} as JSON.
type HTTPLocator struct {
	url     string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPLocator creates a locator against the given endpoint. A zero
// timeout falls back to DefaultLocationTimeout.
func NewHTTPLocator(url string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *HTTPLocator {
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLocator{url: url, timeout: timeout, http: httpClient, log: logger}
}

// Locate fetches the current position within the configured bound.
func (l *HTTPLocator) Locate(ctx context.Context) (*models.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLocationUnavailable, "build location request", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrLocationTimeout, "position lookup timed out", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrLocationUnavailable, "position lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.ErrLocationUnavailable, "position endpoint returned "+resp.Status)
	}

	var loc models.Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLocationUnavailable, "decode position", err)
	}
	return &loc, nil
}
