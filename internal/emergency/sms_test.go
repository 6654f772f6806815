package emergency

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// TestURIComposerBuildsSMSURI verifies the compose action receives an sms:
// URI with the body escaped.
func TestURIComposerBuildsSMSURI(t *testing.T) {
	var gotName string
	var gotArgs []string

	c := NewURIComposer("true", nil)
	c.run = func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}

	err := c.Compose(context.Background(), "+919876543210", "help needed & fast")
	if err != nil {
		t.Fatalf("Compose errored: %v", err)
	}
	if gotName != "true" {
		t.Errorf("opener = %s", gotName)
	}
	if len(gotArgs) != 1 {
		t.Fatalf("args = %v", gotArgs)
	}
	uri := gotArgs[0]
	if !strings.HasPrefix(uri, "sms:+919876543210?body=") {
		t.Errorf("uri = %q", uri)
	}
	if strings.Contains(uri, " ") || strings.Contains(uri, "&") {
		t.Errorf("body not escaped: %q", uri)
	}
}

// TestURIComposerUnavailable verifies a missing opener is a capability
// failure, not a crash.
func TestURIComposerUnavailable(t *testing.T) {
	c := NewURIComposer("nalam-no-such-opener", nil)

	if c.Available() {
		t.Fatal("nonexistent opener reported available")
	}
	err := c.Compose(context.Background(), "+15550001", "hello")
	if !apperrors.Is(err, apperrors.ErrSMSUnavailable) {
		t.Errorf("got %v, want SMS_UNAVAILABLE", err)
	}
}

// TestMessageBodyContent verifies all alert fields surface in the rendered
// text.
func TestMessageBodyContent(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	alert := &models.EmergencyAlert{
		ID:        models.NewAlertID(at, "ab12cd34"),
		UserID:    "u1",
		Timestamp: at.Unix(),
		Severity:  models.SeverityHigh,
		Location:  &models.Location{Latitude: 13.0827, Longitude: 80.2707},
		Symptoms:  []string{"dizziness", "nausea"},
		Message:   "fell in the kitchen",
	}

	body := MessageBody(alert)
	for _, want := range []string{"HIGH", "fell in the kitchen", "dizziness, nausea", "13.082700,80.270700"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

// TestMessageBodyMinimal verifies optional fields are simply omitted.
func TestMessageBodyMinimal(t *testing.T) {
	alert := &models.EmergencyAlert{
		Timestamp: time.Now().Unix(),
		Severity:  models.SeverityLow,
	}

	body := MessageBody(alert)
	if strings.Contains(body, "Symptoms") || strings.Contains(body, "maps.google.com") {
		t.Errorf("optional sections rendered for minimal alert: %s", body)
	}
	if !strings.Contains(body, "LOW") {
		t.Errorf("severity missing: %s", body)
	}
}
