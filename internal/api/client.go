// Package api provides the HTTP client for the remote health API. A 2xx
// response means the server durably accepted the payload; anything else,
// including transport failures, means "not yet delivered".
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// Client calls the remote health API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL. A nil httpClient
// falls back to http.DefaultClient; timeouts are the transport's.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Deliver sends a queue item payload to its kind-specific endpoint.
// Unknown kinds are an input error; delivery failures are transport
// errors.
func (c *Client) Deliver(ctx context.Context, kind models.QueueKind, payload json.RawMessage) error {
	switch kind {
	case models.QueueKindHealthData:
		return c.post(ctx, "/health/vitals", payload)
	case models.QueueKindEmergencyAlert:
		return c.post(ctx, "/health/emergency", payload)
	case models.QueueKindMedicationConfirmation:
		return c.post(ctx, "/medications/confirm", payload)
	default:
		return apperrors.New(apperrors.ErrUnknownQueueKind, fmt.Sprintf("kind %q", kind))
	}
}

// SendAlert delivers an emergency alert directly, bypassing the queue.
func (c *Client) SendAlert(ctx context.Context, alert models.AlertPayload) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInput, "encode alert", err)
	}
	return c.post(ctx, "/health/emergency", raw)
}

// Contacts fetches the authoritative emergency contact list, ordered by
// the server.
func (c *Client) Contacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/emergency-contacts/"+userID, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInput, "build contacts request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "GET /emergency-contacts", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.ErrTransport,
			fmt.Sprintf("GET /emergency-contacts: status %d", resp.StatusCode))
	}

	var contacts []models.EmergencyContact
	if err := json.NewDecoder(resp.Body).Decode(&contacts); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "decode contacts", err)
	}
	return contacts, nil
}

// CreateContact mirrors a local contact addition to the server.
func (c *Client) CreateContact(ctx context.Context, contact models.EmergencyContact) error {
	raw, err := json.Marshal(contact)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInput, "encode contact", err)
	}
	return c.post(ctx, "/emergency-contacts", raw)
}

// DeleteContact mirrors a local contact removal to the server.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/emergency-contacts/"+id, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInput, "build delete request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, "DELETE /emergency-contacts", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.New(apperrors.ErrTransport,
			fmt.Sprintf("DELETE /emergency-contacts: status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInput, "build request "+path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, "POST "+path, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.New(apperrors.ErrTransport,
			fmt.Sprintf("POST %s: status %d", path, resp.StatusCode))
	}
	return nil
}

// drain discards and closes the body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
