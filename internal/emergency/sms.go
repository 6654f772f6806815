package emergency

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// Composer opens a pre-filled SMS compose action for one recipient. Compose
// is fire-and-forget; no delivery receipt is observed.
type Composer interface {
	// Available reports whether the platform can compose SMS at all.
	Available() bool
	Compose(ctx context.Context, phone, body string) error
}

// URIComposer hands an sms: URI to a platform opener such as xdg-open.
type URIComposer struct {
	opener string
	run    func(ctx context.Context, name string, args ...string) error
	log    *zap.Logger
}

// NewURIComposer creates a composer backed by the named opener binary.
func NewURIComposer(opener string, logger *zap.Logger) *URIComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URIComposer{
		opener: opener,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		log: logger,
	}
}

// Available reports whether the opener binary is on PATH.
func (c *URIComposer) Available() bool {
	if c.opener == "" {
		return false
	}
	_, err := exec.LookPath(c.opener)
	return err == nil
}

// Compose opens one compose action for the recipient.
func (c *URIComposer) Compose(ctx context.Context, phone, body string) error {
	if !c.Available() {
		return apperrors.New(apperrors.ErrSMSUnavailable, "no SMS opener on this platform")
	}

	uri := fmt.Sprintf("sms:%s?body=%s", phone, url.QueryEscape(body))
	if err := c.run(ctx, c.opener, uri); err != nil {
		return apperrors.Wrap(apperrors.ErrSMSUnavailable, "open SMS composer", err)
	}

	c.log.Debug("sms compose opened", zap.String("phone", phone))
	return nil
}

// MessageBody renders the human-readable SMS text for an alert: timestamp,
// severity, optional free text, optional symptoms, optional map link.
func MessageBody(alert *models.EmergencyAlert) string {
	var b strings.Builder

	at := time.Unix(alert.Timestamp, 0).Format(time.RFC3339)
	fmt.Fprintf(&b, "EMERGENCY (%s) at %s.", strings.ToUpper(string(alert.Severity)), at)

	if alert.Message != "" {
		b.WriteString(" ")
		b.WriteString(alert.Message)
	}
	if len(alert.Symptoms) > 0 {
		fmt.Fprintf(&b, " Symptoms: %s.", strings.Join(alert.Symptoms, ", "))
	}
	if alert.Location != nil {
		fmt.Fprintf(&b, " Location: https://maps.google.com/?q=%.6f,%.6f",
			alert.Location.Latitude, alert.Location.Longitude)
	}
	return b.String()
}
