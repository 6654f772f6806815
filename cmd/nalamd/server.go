package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	"github.com/jayaraj-kannan/nalam-sub001/internal/emergency"
	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
	syncpkg "github.com/jayaraj-kannan/nalam-sub001/internal/sync"
	"github.com/jayaraj-kannan/nalam-sub001/internal/telemetry"
)

// server exposes the engine over a localhost REST surface so device
// integrations and the UI shell can drive it.
type server struct {
	userID     string
	store      *db.Store
	coord      *syncpkg.Coordinator
	dispatcher *emergency.Dispatcher
	counters   *telemetry.Counters
	log        *zap.Logger
}

func newServer(userID string, store *db.Store, coord *syncpkg.Coordinator, dispatcher *emergency.Dispatcher, counters *telemetry.Counters, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{
		userID:     userID,
		store:      store,
		coord:      coord,
		dispatcher: dispatcher,
		counters:   counters,
		log:        logger,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/sync/status", s.handleSyncStatus)
	r.Post("/api/sync/now", s.handleSyncNow)
	r.Post("/api/vitals", s.handleSaveVitals)
	r.Post("/api/alerts", s.handleTriggerAlert)
	r.Get("/api/contacts", s.handleListContacts)
	r.Post("/api/contacts", s.handleAddContact)
	r.Delete("/api/contacts/{id}", s.handleRemoveContact)
	r.Get("/api/medications", s.handleListMedications)
	r.Post("/api/medications/confirm", s.handleConfirmMedication)
	r.Get("/api/appointments", s.handleListAppointments)
	r.Post("/api/logout", s.handleLogout)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "nalamd",
	})
}

func (s *server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sync":     s.coord.State(),
		"counters": s.counters.Snapshot(),
	})
}

func (s *server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.SyncAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.State())
}

func (s *server) handleSaveVitals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string          `json:"user_id"`
		Reading json.RawMessage `json:"reading"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = s.userID
	}
	if req.UserID == "" || len(req.Reading) == 0 {
		http.Error(w, "user_id and reading are required", http.StatusBadRequest)
		return
	}

	record, err := s.coord.SaveVitals(r.Context(), req.UserID, req.Reading)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *server) handleTriggerAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string          `json:"user_id"`
		Severity     models.Severity `json:"severity"`
		Message      string          `json:"message"`
		Symptoms     []string        `json:"symptoms"`
		OmitLocation bool            `json:"omit_location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = s.userID
	}

	result, err := s.dispatcher.TriggerAlert(r.Context(), req.UserID, req.Severity, emergency.AlertOptions{
		Symptoms:     req.Symptoms,
		Message:      req.Message,
		OmitLocation: req.OmitLocation,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	userID := s.resolveUser(r)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	contacts, err := s.dispatcher.Contacts(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var contact models.EmergencyContact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if contact.UserID == "" {
		contact.UserID = s.userID
	}

	added, err := s.dispatcher.AddContact(r.Context(), contact)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *server) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.RemoveContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	userID := s.resolveUser(r)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	meds, err := s.store.MedicationsByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meds)
}

func (s *server) handleConfirmMedication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		MedicationID string `json:"medication_id"`
		TakenAt      int64  `json:"taken_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = s.userID
	}
	if req.UserID == "" || req.MedicationID == "" {
		http.Error(w, "user_id and medication_id are required", http.StatusBadRequest)
		return
	}
	if req.TakenAt == 0 {
		req.TakenAt = time.Now().Unix()
	}

	item, err := s.coord.Enqueue(r.Context(), models.MedicationConfirmation{
		UserID:       req.UserID,
		MedicationID: req.MedicationID,
		TakenAt:      req.TakenAt,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	userID := s.resolveUser(r)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	appts, err := s.store.AppointmentsByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

// handleLogout erases every local collection. The next sign-in starts from
// an empty store and a fresh remote snapshot.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) resolveUser(r *http.Request) string {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return userID
	}
	return s.userID
}

// writeError maps the error taxonomy onto HTTP statuses: invalid input is
// the caller's fault, everything else is internal.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsInput(err) {
		status = http.StatusBadRequest
	} else {
		s.log.Error("request failed", zap.Error(err))
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
