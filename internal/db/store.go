package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// Store provides durable access to the engine collections. All methods are
// safe for concurrent use; SQLite serializes writes behind a single
// connection.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	// initOnce memoizes schema initialization: concurrent callers block on
	// the first in-flight attempt and all observe its result.
	initOnce sync.Once
	initErr  error
}

// NewStore creates a Store over an opened database handle. Init must
// succeed before any collection operation can.
func NewStore(conn *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: conn, log: logger}
}

// NewStoreWithSchema creates a Store whose schema the caller already owns.
// Used by tests that drive the handle directly (e.g. sqlmock).
func NewStoreWithSchema(conn *sql.DB, logger *zap.Logger) *Store {
	s := NewStore(conn, logger)
	s.initOnce.Do(func() {})
	return s
}

// Init opens or creates the schema. It is idempotent and safe to call
// concurrently; every caller gets the first attempt's result. A failed
// init is fatal to the calling operation.
func (s *Store) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		if err := migrate(ctx, s.db); err != nil {
			s.initErr = apperrors.Wrap(apperrors.ErrMigration, "initialize schema", err)
			return
		}
		s.log.Info("local store initialized")
	})
	return s.initErr
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =====================================================
// HealthRecord operations
// =====================================================

// PutRecord appends or overwrites a health record. A zero id is
// auto-assigned; CreatedAt defaults to now.
func (s *Store) PutRecord(ctx context.Context, rec *models.HealthRecord) (int64, error) {
	if err := s.Init(ctx); err != nil {
		return 0, err
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}

	if rec.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO health_records (user_id, type, payload, created_at, synced, sync_attempts)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.UserID, rec.Type, string(rec.Payload), rec.CreatedAt, rec.Synced, rec.SyncAttempts)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrStorage, "put health record", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrStorage, "put health record", err)
		}
		rec.ID = id
		return id, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO health_records (id, user_id, type, payload, created_at, synced, sync_attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Type, string(rec.Payload), rec.CreatedAt, rec.Synced, rec.SyncAttempts)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "put health record", err)
	}
	return rec.ID, nil
}

// Records returns the user's health records newest-first by created_at.
// limit <= 0 returns the full set.
func (s *Store) Records(ctx context.Context, userID string, limit int) ([]models.HealthRecord, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, type, payload, created_at, synced, sync_attempts
		FROM health_records WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list health records", err)
	}
	defer rows.Close()

	var records []models.HealthRecord
	for rows.Next() {
		var rec models.HealthRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Type, &payload,
			&rec.CreatedAt, &rec.Synced, &rec.SyncAttempts); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan health record", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list health records", err)
	}
	return records, nil
}

// MarkRecordSynced flips the synced flag in place. The record itself is
// never deleted by the sync path.
func (s *Store) MarkRecordSynced(ctx context.Context, id int64) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE health_records SET synced = 1 WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "mark record synced", err)
	}
	return nil
}

// IncrementRecordAttempts bumps the record's sync attempt counter.
func (s *Store) IncrementRecordAttempts(ctx context.Context, id int64) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE health_records SET sync_attempts = sync_attempts + 1 WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "increment record attempts", err)
	}
	return nil
}

// =====================================================
// Queue operations
// =====================================================

// Enqueue appends a pending remote side-effect and returns its id.
func (s *Store) Enqueue(ctx context.Context, item *models.QueueItem) (int64, error) {
	if err := s.Init(ctx); err != nil {
		return 0, err
	}
	if item.EnqueuedAt == 0 {
		item.EnqueuedAt = time.Now().Unix()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (kind, payload, enqueued_at, attempts)
		VALUES (?, ?, ?, ?)`,
		item.Kind, string(item.Payload), item.EnqueuedAt, item.Attempts)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "enqueue item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "enqueue item", err)
	}
	item.ID = id
	return id, nil
}

// QueueItems returns the full queue in enqueue order.
func (s *Store) QueueItems(ctx context.Context) ([]models.QueueItem, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, enqueued_at, attempts
		FROM sync_queue ORDER BY id`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "read queue", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var payload string
		if err := rows.Scan(&item.ID, &item.Kind, &payload, &item.EnqueuedAt, &item.Attempts); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan queue item", err)
		}
		item.Payload = []byte(payload)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "read queue", err)
	}
	return items, nil
}

// DeleteQueueItem removes an item after its effect is durably acknowledged.
// Deleting an absent id is a no-op, not an error.
func (s *Store) DeleteQueueItem(ctx context.Context, id int64) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "delete queue item", err)
	}
	return nil
}

// IncrementAttempts bumps a queue item's delivery attempt counter.
func (s *Store) IncrementAttempts(ctx context.Context, id int64) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE sync_queue SET attempts = attempts + 1 WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "increment attempts", err)
	}
	return nil
}

// QueueLen returns the number of pending queue items.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	if err := s.Init(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue").Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "count queue", err)
	}
	return n, nil
}

// =====================================================
// EmergencyContact operations
// =====================================================

// ContactsByUser returns the user's cached contacts ordered by ascending
// priority.
func (s *Store) ContactsByUser(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, relationship, phone, email, priority
		FROM emergency_contacts WHERE user_id = ?
		ORDER BY priority, name`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list contacts", err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship,
			&c.Phone, &c.Email, &c.Priority); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan contact", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list contacts", err)
	}
	return contacts, nil
}

// ReplaceContactsForUser replaces the user's contact snapshot wholesale
// inside one transaction: all prior rows go before the new set lands, so
// no reader ever observes old and new copies of the same contact.
func (s *Store) ReplaceContactsForUser(ctx context.Context, userID string, contacts []models.EmergencyContact) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace contacts", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM emergency_contacts WHERE user_id = ?", userID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace contacts", err)
	}
	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO emergency_contacts (id, user_id, name, relationship, phone, email, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, userID, c.Name, c.Relationship, c.Phone, c.Email, c.Priority); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "replace contacts", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace contacts", err)
	}
	return nil
}

// PutContact inserts or updates a single contact.
func (s *Store) PutContact(ctx context.Context, c *models.EmergencyContact) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO emergency_contacts (id, user_id, name, relationship, phone, email, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Phone, c.Email, c.Priority); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "put contact", err)
	}
	return nil
}

// DeleteContact removes a contact. Absent ids are a no-op.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM emergency_contacts WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "delete contact", err)
	}
	return nil
}

// =====================================================
// Medication / Appointment operations
// =====================================================

// MedicationsByUser returns the user's cached medications.
func (s *Store) MedicationsByUser(ctx context.Context, userID string) ([]models.Medication, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, dosage, schedule, updated_at
		FROM medications WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list medications", err)
	}
	defer rows.Close()

	var meds []models.Medication
	for rows.Next() {
		var m models.Medication
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.Schedule, &m.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan medication", err)
		}
		meds = append(meds, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list medications", err)
	}
	return meds, nil
}

// ReplaceMedicationsForUser replaces the user's medication snapshot
// wholesale, same contract as ReplaceContactsForUser.
func (s *Store) ReplaceMedicationsForUser(ctx context.Context, userID string, meds []models.Medication) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace medications", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM medications WHERE user_id = ?", userID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace medications", err)
	}
	for _, m := range meds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO medications (id, user_id, name, dosage, schedule, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, userID, m.Name, m.Dosage, m.Schedule, m.UpdatedAt); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "replace medications", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace medications", err)
	}
	return nil
}

// AppointmentsByUser returns the user's cached appointments ordered by
// start time.
func (s *Store) AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, notes, starts_at, updated_at
		FROM appointments WHERE user_id = ? ORDER BY starts_at`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list appointments", err)
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.Notes, &a.StartsAt, &a.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan appointment", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list appointments", err)
	}
	return appts, nil
}

// ReplaceAppointmentsForUser replaces the user's appointment snapshot
// wholesale.
func (s *Store) ReplaceAppointmentsForUser(ctx context.Context, userID string, appts []models.Appointment) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace appointments", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM appointments WHERE user_id = ?", userID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace appointments", err)
	}
	for _, a := range appts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO appointments (id, user_id, provider, notes, starts_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, userID, a.Provider, a.Notes, a.StartsAt, a.UpdatedAt); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "replace appointments", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "replace appointments", err)
	}
	return nil
}

// =====================================================
// Maintenance
// =====================================================

// ClearAll erases every collection. Used only on account logout.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "clear all", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"health_records", "sync_queue", "emergency_contacts", "medications", "appointments",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "clear all", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "clear all", err)
	}
	s.log.Info("local store cleared")
	return nil
}
