// Package emergency dispatches severity-tagged alerts over the best
// available channel. An alert is never silently lost: direct delivery when
// the backend is reachable, otherwise durable queueing plus an SMS fallback
// to the highest-priority contacts.
package emergency

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jayaraj-kannan/nalam-sub001/internal/connectivity"
	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
	"github.com/jayaraj-kannan/nalam-sub001/internal/telemetry"
	"github.com/jayaraj-kannan/nalam-sub001/internal/uuid"
)

// maxSMSRecipients caps how many contacts the fallback notifies.
const maxSMSRecipients = 3

// Remote is the slice of the backend API the dispatcher consumes.
type Remote interface {
	SendAlert(ctx context.Context, alert models.AlertPayload) error
	Contacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	CreateContact(ctx context.Context, contact models.EmergencyContact) error
	DeleteContact(ctx context.Context, id string) error
}

// Queuer appends a payload to the durable queue for later delivery.
type Queuer interface {
	Enqueue(ctx context.Context, payload models.QueuePayload) (*models.QueueItem, error)
}

// AlertOptions carries the optional parts of an alert. The zero value
// includes a location lookup.
type AlertOptions struct {
	Symptoms []string
	Message  string
	// OmitLocation skips the position lookup entirely.
	OmitLocation bool
}

// ManualInstruction is one contact the caller must notify by hand when the
// platform cannot compose SMS.
type ManualInstruction struct {
	Contact models.EmergencyContact `json:"contact"`
	Body    string                  `json:"body"`
}

// DispatchResult reports which channels carried the alert.
type DispatchResult struct {
	Alert      *models.EmergencyAlert    `json:"alert"`
	Delivered  bool                      `json:"delivered"`
	Queued     bool                      `json:"queued"`
	SMSSent    int                       `json:"sms_sent"`
	Recipients []models.EmergencyContact `json:"recipients,omitempty"`
	Manual     []ManualInstruction       `json:"manual,omitempty"`
	Notice     string                    `json:"notice,omitempty"`
}

// Dispatcher owns the emergency alert path and the contact cache.
type Dispatcher struct {
	store    *db.Store
	remote   Remote
	queuer   Queuer
	net      connectivity.Source
	locator  Locator
	sms      Composer
	counters *telemetry.Counters
	log      *zap.Logger
}

// NewDispatcher wires a dispatcher over an initialized store.
func NewDispatcher(store *db.Store, remote Remote, queuer Queuer, net connectivity.Source, locator Locator, sms Composer, counters *telemetry.Counters, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		remote:   remote,
		queuer:   queuer,
		net:      net,
		locator:  locator,
		sms:      sms,
		counters: counters,
		log:      logger,
	}
}

// Init primes the contact cache for a user. The local snapshot makes the
// dispatcher usable immediately offline; when online, the authoritative
// remote list overwrites it wholesale. A failed store read is fatal, a
// failed remote refresh is not.
func (d *Dispatcher) Init(ctx context.Context, userID string) error {
	local, err := d.store.ContactsByUser(ctx, userID)
	if err != nil {
		return err
	}
	d.log.Debug("contact cache loaded", zap.Int("count", len(local)))

	if !d.net.Current() {
		return nil
	}

	remote, err := d.remote.Contacts(ctx, userID)
	if err != nil {
		d.log.Warn("remote contact refresh failed, keeping local snapshot", zap.Error(err))
		return nil
	}
	if err := d.store.ReplaceContactsForUser(ctx, userID, remote); err != nil {
		d.log.Error("failed to persist refreshed contacts", zap.Error(err))
		return nil
	}
	d.log.Info("contact cache refreshed", zap.Int("count", len(remote)))
	return nil
}

// TriggerAlert raises an alert for the user. Communication failures never
// surface as errors; the alert degrades through queueing and SMS fallback
// instead. Only invalid input rejects the call.
func (d *Dispatcher) TriggerAlert(ctx context.Context, userID string, severity models.Severity, opts AlertOptions) (*DispatchResult, error) {
	if userID == "" {
		return nil, apperrors.New(apperrors.ErrInput, "user id is required")
	}
	if !severity.IsValid() {
		return nil, apperrors.New(apperrors.ErrInvalidSeverity, string(severity))
	}

	now := time.Now()
	alert := &models.EmergencyAlert{
		ID:        models.NewAlertID(now, uuid.Short()),
		UserID:    userID,
		Timestamp: now.Unix(),
		Severity:  severity,
		Symptoms:  opts.Symptoms,
		Message:   opts.Message,
	}

	if !opts.OmitLocation && d.locator != nil {
		loc, err := d.locator.Locate(ctx)
		if err != nil {
			d.log.Warn("proceeding without location", zap.Error(err))
		} else {
			alert.Location = loc
		}
	}

	d.counters.AlertDispatched()
	result := &DispatchResult{Alert: alert}

	if d.net.Current() {
		err := d.remote.SendAlert(ctx, alert.Wire())
		if err == nil {
			result.Delivered = true
			d.persistAlertRecord(ctx, alert, true)
			d.log.Info("alert delivered directly",
				zap.String("alert_id", alert.ID),
				zap.String("severity", string(severity)))
			return result, nil
		}
		// A failed online delivery degrades exactly like being offline:
		// queue and fall back.
		d.log.Warn("direct alert delivery failed, falling back",
			zap.String("alert_id", alert.ID), zap.Error(err))
	}

	if _, err := d.queuer.Enqueue(ctx, alert.Wire()); err != nil {
		d.log.Error("failed to queue alert", zap.String("alert_id", alert.ID), zap.Error(err))
	} else {
		result.Queued = true
	}
	d.persistAlertRecord(ctx, alert, false)

	d.fallbackSMS(ctx, alert, result)

	if !result.Delivered && !result.Queued && result.SMSSent == 0 && len(result.Manual) == 0 {
		result.Notice = "alert could not be stored or sent, contact emergency services directly"
	}
	return result, nil
}

// fallbackSMS notifies the top-priority contacts, degrading to manual
// instructions when the platform cannot compose SMS.
func (d *Dispatcher) fallbackSMS(ctx context.Context, alert *models.EmergencyAlert, result *DispatchResult) {
	contacts, err := d.store.ContactsByUser(ctx, alert.UserID)
	if err != nil {
		d.log.Error("failed to read contacts for SMS fallback", zap.Error(err))
		contacts = nil
	}
	if len(contacts) == 0 {
		if result.Queued {
			result.Notice = "no contacts configured, alert queued"
		}
		return
	}

	models.SortByPriority(contacts)
	if len(contacts) > maxSMSRecipients {
		contacts = contacts[:maxSMSRecipients]
	}
	result.Recipients = contacts

	body := MessageBody(alert)

	if d.sms == nil || !d.sms.Available() {
		for _, c := range contacts {
			result.Manual = append(result.Manual, ManualInstruction{Contact: c, Body: body})
		}
		d.log.Warn("SMS not available, surfacing manual instructions",
			zap.Int("contacts", len(contacts)))
		return
	}

	// One compose action per contact, never a single group message.
	for _, c := range contacts {
		if err := d.sms.Compose(ctx, c.Phone, body); err != nil {
			d.log.Error("SMS compose failed",
				zap.String("contact_id", c.ID), zap.Error(err))
			result.Manual = append(result.Manual, ManualInstruction{Contact: c, Body: body})
			continue
		}
		result.SMSSent++
		d.counters.SMSComposed()
	}
}

// persistAlertRecord keeps the alert in the local health record stream.
func (d *Dispatcher) persistAlertRecord(ctx context.Context, alert *models.EmergencyAlert, delivered bool) {
	payload, err := json.Marshal(alert)
	if err != nil {
		d.log.Error("failed to encode alert record", zap.Error(err))
		return
	}
	rec := &models.HealthRecord{
		UserID:    alert.UserID,
		Type:      models.RecordTypeAlert,
		Payload:   payload,
		CreatedAt: alert.Timestamp,
		Synced:    delivered,
	}
	if _, err := d.store.PutRecord(ctx, rec); err != nil {
		d.log.Error("failed to persist alert record", zap.Error(err))
	}
}

// Contacts returns the cached contact snapshot ordered by priority.
func (d *Dispatcher) Contacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	return d.store.ContactsByUser(ctx, userID)
}

// AddContact writes the contact locally first, then best-effort mirrors it
// to the backend when online. A failed mirror is logged, never surfaced, and
// never rolls back the local write.
func (d *Dispatcher) AddContact(ctx context.Context, contact models.EmergencyContact) (models.EmergencyContact, error) {
	if contact.UserID == "" || contact.Name == "" || contact.Phone == "" {
		return models.EmergencyContact{}, apperrors.New(apperrors.ErrInput, "contact needs user id, name and phone")
	}
	if contact.ID == "" {
		contact.ID = uuid.New()
	}

	if err := d.store.PutContact(ctx, &contact); err != nil {
		return models.EmergencyContact{}, err
	}

	if d.net.Current() {
		if err := d.remote.CreateContact(ctx, contact); err != nil {
			d.log.Warn("contact mirror to backend failed",
				zap.String("contact_id", contact.ID), zap.Error(err))
		}
	}
	return contact, nil
}

// RemoveContact deletes the contact locally first, then best-effort mirrors
// the deletion when online.
func (d *Dispatcher) RemoveContact(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.New(apperrors.ErrInput, "contact id is required")
	}

	if err := d.store.DeleteContact(ctx, id); err != nil {
		return err
	}

	if d.net.Current() {
		if err := d.remote.DeleteContact(ctx, id); err != nil {
			d.log.Warn("contact deletion mirror failed",
				zap.String("contact_id", id), zap.Error(err))
		}
	}
	return nil
}
