package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/cart-recovery/internal/mirror"
	"github.com/fjod/cart-recovery/internal/reminder"
	"github.com/fjod/cart-recovery/internal/stats"
	"github.com/go-chi/chi/v5"
)

type Stats interface {
	Snapshot(ctx context.Context) (*stats.Summary, error)
}

type AdminHandler struct {
	stats     Stats
	scheduler *reminder.Scheduler
	records   mirror.RecordRepository
	timeout   time.Duration
}

func NewAdminHandler(scheduler *reminder.Scheduler, aggregator Stats, records mirror.RecordRepository, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		stats:     aggregator,
		scheduler: scheduler,
		records:   records,
		timeout:   timeout,
	}
}

func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.stats.Snapshot(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// SendBulkReminders runs a batch send. The batch is rate-limited internally,
// so the request timeout is intentionally generous.
func (h *AdminHandler) SendBulkReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.SendBulk(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := chi.URLParam(r, "record_id")
	if key == "" {
		respondError(w, http.StatusBadRequest, "invalid_record_id", "record_id is required")
		return
	}

	record, err := h.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, mirror.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		return
	}

	if errSend := h.scheduler.SendReminder(ctx, record); errSend != nil {
		switch {
		case errors.Is(errSend, reminder.ErrRecovered):
			respondError(w, http.StatusConflict, "already_recovered", errSend.Error())
		case errors.Is(errSend, reminder.ErrNoEmail):
			respondError(w, http.StatusConflict, "no_email", errSend.Error())
		case errors.Is(errSend, reminder.ErrCapped):
			respondError(w, http.StatusConflict, "reminder_capped", errSend.Error())
		case errors.Is(errSend, reminder.ErrCounterNotUpdated):
			// The email was delivered; only the counter write failed.
			respondError(w, http.StatusInternalServerError, "counter_not_updated", errSend.Error())
		default:
			respondError(w, http.StatusServiceUnavailable, "send_failed", errSend.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
